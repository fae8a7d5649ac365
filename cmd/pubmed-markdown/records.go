// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmed-markdown/internal/records"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Rebuild and export the processing-records ledger",
	Long: `Records scans <data-dir>/markdown/, parses the PMID, PMCID and URL of
each article and brings the ledger in cache/pubmed.db up to date. Unchanged
files are skipped. --validate lists articles missing a required field;
--csv and --yaml export the ledger to <data-dir>/records.csv and
records.yaml.`,
	RunE: runRecords,
}

func init() {
	recordsCmd.Flags().Bool("validate", false, "report articles missing a PMID, PMCID, or URL")
	recordsCmd.Flags().Bool("csv", false, "export the ledger to records.csv")
	recordsCmd.Flags().Bool("yaml", false, "export the ledger to records.yaml")

	rootCmd.AddCommand(recordsCmd)
}

func runRecords(cmd *cobra.Command, args []string) error {
	validate, _ := cmd.Flags().GetBool("validate")
	toCSV, _ := cmd.Flags().GetBool("csv")
	toYAML, _ := cmd.Flags().GetBool("yaml")
	out := cmd.OutOrStdout()
	dir := dataDir()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := records.Sync(cmd.Context(), dir, st, out)
	if err != nil {
		return err
	}

	recs, err := st.Records(cmd.Context())
	if err != nil {
		return err
	}

	if toCSV {
		if err := records.ExportCSV(dir, recs); err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported to %s\n", filepath.Join(dir, records.CSVFile))
	}
	if toYAML {
		if err := records.ExportYAML(dir, recs); err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported to %s\n", filepath.Join(dir, records.YAMLFile))
	}

	if validate {
		missing := records.Validate(recs)
		for _, m := range missing {
			fmt.Fprintf(out, "missing: %s (%s)\n", m.Path, strings.Join(m.Fields, ", "))
		}
		fmt.Fprintf(out, "\n%d of %d record(s) incomplete\n", len(missing), len(recs))
		if len(missing) > 0 {
			return fmt.Errorf("%d record(s) incomplete", len(missing))
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed indexing", summary.Failed)
	}
	return nil
}
