// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the identifier and supplement caches",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached PMCID lookups and supplement availability",
	Long: `Clear empties the PMID to PMCID cache and the supplement cache in
<data-dir>/cache/pubmed.db. The processing-records ledger is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sum, err := st.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared: %d PMCID lookup(s), %d supplement lookup(s)\n", sum.PMCIDs, sum.Supplements)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
