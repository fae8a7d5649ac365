// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download turns PubMed and PMC identifiers into markdown: PMIDs
// are resolved to PMCIDs, article pages are saved under html/ and
// converted, and articles without a PMC copy fall back to their abstract.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/pubmed-markdown/internal/batch"
	"github.com/pdiddy/pubmed-markdown/internal/idconv"
	"github.com/pdiddy/pubmed-markdown/internal/supplement"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// PMCIDsFile lists the PMCIDs found by the last run, one per line.
const PMCIDsFile = "pmcids.txt"

// ErrNoIdentifiers is returned when Run is given nothing to do.
var ErrNoIdentifiers = errors.New("no identifiers given")

// Resolver maps PMIDs to PMCIDs. *idconv.Converter implements it.
type Resolver interface {
	Convert(ctx context.Context, pmids []string) (idconv.Result, error)
}

// HTMLSource fetches article pages. *fetch.Fetcher implements it.
type HTMLSource interface {
	HTML(ctx context.Context, pmcid string) ([]byte, error)
}

// AbstractSource builds abstract-only documents. *abstract.Fetcher
// implements it.
type AbstractSource interface {
	Document(ctx context.Context, pmid string) (*types.Document, error)
}

// Result holds the outcome of a download run.
type Result struct {
	Downloaded int
	Abstracts  int
	Skipped    int
	Failed     int
}

// Total returns the number of identifiers processed.
func (r Result) Total() int {
	return r.Downloaded + r.Abstracts + r.Skipped + r.Failed
}

// HasFailures reports whether any identifier failed.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Pipeline downloads and converts articles into one data directory.
type Pipeline struct {
	conv      *batch.Converter
	resolver  Resolver
	html      HTMLSource
	abstracts AbstractSource
	cfg       types.DownloadConfig
	log       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for pipeline diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithAbstracts enables the abstract-only fallback.
func WithAbstracts(a AbstractSource) Option {
	return func(p *Pipeline) { p.abstracts = a }
}

// New returns a Pipeline writing through conv.
func New(conv *batch.Converter, resolver Resolver, html HTMLSource, cfg types.DownloadConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		conv:     conv,
		resolver: resolver,
		html:     html,
		cfg:      cfg,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// target is one article to produce. An empty pmcid means abstract only.
type target struct {
	pmid  string
	pmcid string
}

// Run processes identifiers in order, printing per-item status to w. It
// continues after individual failures and pauses cfg.Delay between
// network downloads.
func (p *Pipeline) Run(ctx context.Context, identifiers []string, w io.Writer) (Result, error) {
	if len(identifiers) == 0 {
		return Result{}, ErrNoIdentifiers
	}

	var result Result
	var targets []target
	var pmids []string
	for _, id := range identifiers {
		typ, norm := Classify(id)
		switch typ {
		case TypePMCID:
			targets = append(targets, target{pmcid: norm})
		case TypePMID:
			targets = append(targets, target{pmid: norm})
			pmids = append(pmids, norm)
		default:
			fmt.Fprintf(w, "failed:  %s (unrecognized identifier)\n", id)
			result.Failed++
		}
	}

	if len(pmids) > 0 {
		mapping, err := p.resolver.Convert(ctx, pmids)
		if err != nil {
			return result, fmt.Errorf("resolving PMIDs: %w", err)
		}
		for i := range targets {
			if targets[i].pmid != "" {
				targets[i].pmcid = mapping[targets[i].pmid]
			}
		}
	}

	if err := p.writePMCIDs(targets); err != nil {
		return result, err
	}

	fetched := false
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if fetched && p.cfg.Delay > 0 {
			if err := sleep(ctx, p.cfg.Delay); err != nil {
				return result, err
			}
		}

		var status types.ConversionStatus
		status, fetched = p.process(ctx, t, w)
		switch status {
		case types.ConversionDone:
			result.Downloaded++
		case types.ConversionAbstract:
			result.Abstracts++
		case types.ConversionNone:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d abstract-only, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Abstracts, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// process handles one target and reports whether it touched the network.
func (p *Pipeline) process(ctx context.Context, t target, w io.Writer) (types.ConversionStatus, bool) {
	if t.pmcid == "" {
		return p.abstractOnly(ctx, t, w)
	}

	if !p.cfg.Overwrite && p.conv.Exists(t.pmcid) {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", t.pmcid)
		return types.ConversionNone, false
	}

	htmlPath := p.conv.HTMLPath(t.pmcid)
	fetched := false
	if _, err := os.Stat(htmlPath); err != nil || p.cfg.Overwrite {
		fmt.Fprintf(w, "downloading: %s\n", t.pmcid)
		fetched = true
		if err := p.saveHTML(ctx, t.pmcid, htmlPath); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", t.pmcid, err)
			return types.ConversionFailed, fetched
		}
	}
	return p.conv.ConvertFile(ctx, htmlPath, w), fetched
}

func (p *Pipeline) saveHTML(ctx context.Context, pmcid, path string) error {
	body, err := p.html.HTML(ctx, pmcid)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return batch.WriteFile(path, body)
}

func (p *Pipeline) abstractOnly(ctx context.Context, t target, w io.Writer) (types.ConversionStatus, bool) {
	id := "PMID" + t.pmid
	if !p.cfg.Overwrite && p.conv.Exists(id) {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", id)
		return types.ConversionNone, false
	}
	if p.abstracts == nil {
		fmt.Fprintf(w, "failed:  %s (not in PubMed Central)\n", id)
		return types.ConversionFailed, false
	}

	p.log.Warn("article not in PubMed Central, fetching abstract only", "pmid", t.pmid)
	doc, err := p.abstracts.Document(ctx, t.pmid)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		return types.ConversionFailed, true
	}
	if p.conv.HasSupplements() {
		doc.Supplement = supplement.Fallback
	}
	if err := p.conv.WriteDocument(ctx, id, doc, nil, "", types.ConversionAbstract); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		return types.ConversionFailed, true
	}
	fmt.Fprintf(w, "abstract: %s (not in PubMed Central)\n", id)
	return types.ConversionAbstract, true
}

func (p *Pipeline) writePMCIDs(targets []target) error {
	var ids []string
	for _, t := range targets {
		if t.pmcid != "" {
			ids = append(ids, t.pmcid)
		}
	}
	if err := os.MkdirAll(p.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(p.cfg.DataDir, PMCIDsFile)
	if err := batch.WriteFile(path, []byte(strings.Join(ids, "\n"))); err != nil {
		return fmt.Errorf("writing %s: %w", PMCIDsFile, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
