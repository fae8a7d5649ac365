// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmed-markdown/internal/batch"
	"github.com/pdiddy/pubmed-markdown/internal/convert"
	"github.com/pdiddy/pubmed-markdown/internal/store"
	"github.com/pdiddy/pubmed-markdown/internal/supplement"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert PMC article HTML files to markdown",
	Long: `Convert transforms PMC article pages into markdown with a metadata block,
the abstract, body sections, numbered citations and a bibliography.

Given files are written to <data-dir>/markdown/<name>.md with a YAML sidecar
in <data-dir>/metadata/. With --batch every file in <data-dir>/html/ is
converted. With --stdout a single file is printed instead of written.
Existing markdown is skipped unless --overwrite is set.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Bool("batch", false, "convert every file in <data-dir>/html")
	convertCmd.Flags().Bool("stdout", false, "print the markdown of a single file to stdout")
	convertCmd.Flags().Bool("overwrite", false, "regenerate markdown that already exists")
	convertCmd.Flags().String("image-policy", "", "figure images: remote, original, or none (default remote)")
	convertCmd.Flags().String("base-url", "", "base for relative links and images (default "+defaultBaseURL+")")
	convertCmd.Flags().Int("workers", 0, "parallel conversions in batch mode (default 4)")
	convertCmd.Flags().Bool("supplements", false, "append BioC supplementary materials")

	bindFlag("conversion.overwrite", convertCmd.Flags().Lookup("overwrite"))
	bindFlag("conversion.image_policy", convertCmd.Flags().Lookup("image-policy"))
	bindFlag("conversion.base_url", convertCmd.Flags().Lookup("base-url"))
	bindFlag("conversion.workers", convertCmd.Flags().Lookup("workers"))
	bindFlag("conversion.supplements", convertCmd.Flags().Lookup("supplements"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	batchMode, _ := cmd.Flags().GetBool("batch")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	if !batchMode && len(args) == 0 {
		return fmt.Errorf("provide one or more HTML files, or use --batch")
	}
	if toStdout && (batchMode || len(args) != 1) {
		return fmt.Errorf("--stdout takes exactly one file")
	}

	cfg := conversionConfig()
	if err := validateImagePolicy(cfg.ImagePolicy); err != nil {
		return err
	}
	log := logger()
	engine := newEngine(cfg, log)

	if toStdout {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		md, _, err := engine.ConvertToMarkdown(string(src))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []batch.Option{batch.WithLedger(st), batch.WithLogger(log)}
	if cfg.Supplements {
		opts = append(opts, batch.WithSupplements(newSupplements(st, log)))
	}
	conv := batch.New(engine, cfg, opts...)

	var result batch.Result
	if batchMode {
		result, err = conv.ConvertDir(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	} else {
		result = conv.ConvertPaths(cmd.Context(), args, cmd.OutOrStdout())
	}
	if result.HasFailures() {
		return fmt.Errorf("%d article(s) failed conversion", result.Failed)
	}
	return nil
}

func newEngine(cfg types.ConversionConfig, log *slog.Logger) *convert.Engine {
	return convert.New(
		convert.WithBaseURL(cfg.BaseURL),
		convert.WithImagePolicy(cfg.ImagePolicy),
		convert.WithLogger(log),
	)
}

func newSupplements(st *store.Store, log *slog.Logger) *supplement.Fetcher {
	client := newClient(downloadConfig(), log)
	return supplement.New(client, supplement.WithCache(st), supplement.WithLogger(log))
}
