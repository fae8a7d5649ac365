// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmed-markdown/internal/batch"
)

var supplementsCmd = &cobra.Command{
	Use:   "supplements",
	Short: "Append supplementary materials to converted articles",
	Long: `Supplements looks up BioC supplementary text for every PMC article in
<data-dir>/markdown/ and appends it as a Supplementary Materials section.
A "No supplementary materials found." note is replaced once material becomes
available. Articles that already carry supplementary text are skipped
unless --overwrite is set.`,
	RunE: runSupplements,
}

func init() {
	supplementsCmd.Flags().Bool("overwrite", false, "replace supplementary text that is already present")

	rootCmd.AddCommand(supplementsCmd)
}

func runSupplements(cmd *cobra.Command, args []string) error {
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	log := logger()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := conversionConfig()
	conv := batch.New(newEngine(cfg, log), cfg,
		batch.WithSupplements(newSupplements(st, log)),
		batch.WithLogger(log),
	)
	result, err := conv.AddSupplements(cmd.Context(), overwrite, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d article(s) failed supplement lookup", result.Failed)
	}
	return nil
}
