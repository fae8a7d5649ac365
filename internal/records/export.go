// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// File names written at the data directory root.
const (
	CSVFile  = "records.csv"
	YAMLFile = "records.yaml"
)

var csvHeader = []string{"pmid", "pmcid", "markdown_path", "url", "status"}

// WriteCSV writes recs ordered by markdown path.
func WriteCSV(w io.Writer, recs []types.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range sorted(recs) {
		if err := cw.Write([]string{r.PMID, r.PMCID, r.MarkdownPath, r.URL, string(r.Status)}); err != nil {
			return fmt.Errorf("writing csv row %s: %w", r.MarkdownPath, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteYAML writes recs ordered by markdown path.
func WriteYAML(w io.Writer, recs []types.Record) error {
	data, err := yaml.Marshal(sorted(recs))
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportCSV writes dataDir/records.csv.
func ExportCSV(dataDir string, recs []types.Record) error {
	return exportFile(filepath.Join(dataDir, CSVFile), recs, WriteCSV)
}

// ExportYAML writes dataDir/records.yaml.
func ExportYAML(dataDir string, recs []types.Record) error {
	return exportFile(filepath.Join(dataDir, YAMLFile), recs, WriteYAML)
}

func exportFile(path string, recs []types.Record, write func(io.Writer, []types.Record) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
