// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmed-markdown/internal/abstract"
	"github.com/pdiddy/pubmed-markdown/internal/batch"
	"github.com/pdiddy/pubmed-markdown/internal/download"
	"github.com/pdiddy/pubmed-markdown/internal/fetch"
	"github.com/pdiddy/pubmed-markdown/internal/idconv"
	"github.com/pdiddy/pubmed-markdown/internal/supplement"
)

var downloadCmd = &cobra.Command{
	Use:   "download [identifiers...]",
	Short: "Download and convert articles by PMID or PMCID",
	Long: `Download resolves PMIDs to PMCIDs through the NCBI ID converter, saves
each article page to <data-dir>/html/ and converts it to markdown. PMIDs
without a PubMed Central copy fall back to an abstract-only document built
from PubMed. Identifiers may be bare numbers, PMC ids, or PubMed and PMC
article URLs. Existing articles are skipped unless --overwrite is set.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringP("file", "f", "", "read identifiers from a file, one per line")
	downloadCmd.Flags().Bool("overwrite", false, "re-download and regenerate existing articles")
	downloadCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	downloadCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	downloadCmd.Flags().String("email", "", "contact email sent to NCBI")
	downloadCmd.Flags().Bool("supplements", false, "append BioC supplementary materials")

	bindFlag("download.overwrite", downloadCmd.Flags().Lookup("overwrite"))
	bindFlag("download.delay", downloadCmd.Flags().Lookup("delay"))
	bindFlag("download.timeout", downloadCmd.Flags().Lookup("timeout"))
	bindFlag("download.email", downloadCmd.Flags().Lookup("email"))

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ids := append([]string(nil), args...)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		fromFile, err := download.ReadIdentifiers(f)
		f.Close()
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("provide one or more PMIDs or PMCIDs, or use --file")
	}

	log := logger()
	dcfg := downloadConfig()
	ccfg := conversionConfig()
	ccfg.Overwrite = dcfg.Overwrite
	if err := validateImagePolicy(ccfg.ImagePolicy); err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	client := newClient(dcfg, log)
	opts := []batch.Option{batch.WithLedger(st), batch.WithLogger(log)}
	if sup, _ := cmd.Flags().GetBool("supplements"); sup || ccfg.Supplements {
		opts = append(opts, batch.WithSupplements(
			supplement.New(client, supplement.WithCache(st), supplement.WithLogger(log))))
	}
	conv := batch.New(newEngine(ccfg, log), ccfg, opts...)

	idOpts := []idconv.Option{idconv.WithCache(st), idconv.WithLogger(log)}
	if dcfg.CacheTTL > 0 {
		idOpts = append(idOpts, idconv.WithTTL(dcfg.CacheTTL))
	}
	pipeline := download.New(conv,
		idconv.New(client, dcfg.NCBIConfig, idOpts...),
		fetch.New(client),
		dcfg,
		download.WithAbstracts(abstract.New(client, dcfg.NCBIConfig)),
		download.WithLogger(log),
	)

	result, err := pipeline.Run(cmd.Context(), ids, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d article(s) failed download", result.Failed)
	}
	return nil
}
