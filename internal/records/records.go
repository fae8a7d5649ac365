// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records maintains the processing ledger: one row per markdown
// file in the data directory, rebuilt by reading the identifiers back out
// of each file's metadata header.
package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/pubmed-markdown/internal/abstract"
	"github.com/pdiddy/pubmed-markdown/internal/store"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

const markdownDir = "markdown"

var (
	pmcidPattern = regexp.MustCompile(`\*\*PMCID:\*\*\s*([^\n]+)`)
	pmidPattern  = regexp.MustCompile(`\*\*PMID:\*\*\s*([^\n]+)`)
	urlPattern   = regexp.MustCompile(`\*\*URL:\*\*\s*([^\n]+)`)
	titlePattern = regexp.MustCompile(`(?m)^# (.+)$`)
)

// Ledger persists records. *store.Store implements it.
type Ledger interface {
	PutRecord(ctx context.Context, r types.Record) error
	Record(ctx context.Context, id string) (types.Record, error)
	Records(ctx context.Context) ([]types.Record, error)
}

// Parse reads the identifiers and title from a markdown header. Status is
// abstract_only for documents carrying the abstract-only note.
func Parse(md string) types.Record {
	r := types.Record{
		PMCID:  firstMatch(pmcidPattern, md),
		PMID:   firstMatch(pmidPattern, md),
		URL:    firstMatch(urlPattern, md),
		Title:  firstMatch(titlePattern, md),
		Status: types.ConversionDone,
	}
	if strings.Contains(md, abstract.Note) {
		r.Status = types.ConversionAbstract
	}
	return r
}

func firstMatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Scan parses every markdown file under dataDir/markdown in name order.
func Scan(dataDir string) ([]types.Record, error) {
	dir := filepath.Join(dataDir, markdownDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading markdown directory %s: %w", dir, err)
	}

	var out []types.Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		r, err := scanFile(dataDir, e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func scanFile(dataDir string, e os.DirEntry) (types.Record, error) {
	info, err := e.Info()
	if err != nil {
		return types.Record{}, fmt.Errorf("stat %s: %w", e.Name(), err)
	}
	data, err := os.ReadFile(filepath.Join(dataDir, markdownDir, e.Name()))
	if err != nil {
		return types.Record{}, fmt.Errorf("reading %s: %w", e.Name(), err)
	}
	r := Parse(string(data))
	r.MarkdownPath = filepath.ToSlash(filepath.Join(markdownDir, e.Name()))
	r.UpdatedAt = info.ModTime().UTC().Truncate(time.Microsecond)

	// Fall back to the file name for documents written without a header.
	if r.ID() == "" {
		name := strings.TrimSuffix(e.Name(), ".md")
		switch {
		case strings.HasPrefix(name, "PMID"):
			r.PMID = strings.TrimPrefix(name, "PMID")
		case strings.HasPrefix(name, "PMC"):
			r.PMCID = name
		}
	}
	return r, nil
}

// Missing names the required fields a record lacks.
type Missing struct {
	Path   string
	Fields []string
}

// Validate returns the records missing a required field. Every record
// needs a PMID and URL; full-text records also need a PMCID.
func Validate(recs []types.Record) []Missing {
	var out []Missing
	for _, r := range recs {
		var fields []string
		if r.PMID == "" {
			fields = append(fields, "pmid")
		}
		if r.PMCID == "" && r.Status != types.ConversionAbstract {
			fields = append(fields, "pmcid")
		}
		if r.URL == "" {
			fields = append(fields, "url")
		}
		if len(fields) > 0 {
			out = append(out, Missing{Path: r.MarkdownPath, Fields: fields})
		}
	}
	return out
}

// SyncSummary holds counts from a ledger sync.
type SyncSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of files processed.
func (s SyncSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Sync brings the ledger up to date with dataDir/markdown. Files whose
// modification time matches the ledger are skipped.
func Sync(ctx context.Context, dataDir string, ledger Ledger, w io.Writer) (SyncSummary, error) {
	dir := filepath.Join(dataDir, markdownDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("reading markdown directory %s: %w", dir, err)
	}

	var summary SyncSummary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		r, err := scanFile(dataDir, e)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", e.Name(), err)
			summary.Failed++
			continue
		}
		if r.ID() == "" {
			fmt.Fprintf(w, "failed  %s: no PMID or PMCID\n", e.Name())
			summary.Failed++
			continue
		}

		prev, err := ledger.Record(ctx, r.ID())
		isUpdate := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return summary, fmt.Errorf("reading ledger: %w", err)
		}
		if isUpdate && prev.UpdatedAt.Equal(r.UpdatedAt) && prev.MarkdownPath == r.MarkdownPath {
			fmt.Fprintf(w, "skipped %s\n", r.ID())
			summary.Skipped++
			continue
		}

		if err := ledger.PutRecord(ctx, r); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", r.ID(), err)
			summary.Failed++
			continue
		}
		if isUpdate {
			fmt.Fprintf(w, "updated %s\n", r.ID())
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s\n", r.ID())
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

// sorted returns recs ordered by markdown path.
func sorted(recs []types.Record) []types.Record {
	out := append([]types.Record(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MarkdownPath < out[j].MarkdownPath })
	return out
}
