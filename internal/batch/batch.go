// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch converts the article HTML files of a data directory into
// markdown, writing one YAML metadata sidecar per article.
//
// Layout under the data directory:
//
//	html/<id>.html       downloaded article pages
//	markdown/<id>.md     converted documents
//	metadata/<id>.yaml   conversion sidecars
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// Data directory subdirectories.
const (
	HTMLDir     = "html"
	MarkdownDir = "markdown"
	MetadataDir = "metadata"
)

// DefaultWorkers bounds parallel conversions when the config leaves it unset.
const DefaultWorkers = 4

// Engine converts one article. *convert.Engine implements it.
type Engine interface {
	Convert(src string) (*types.Document, types.Warnings, error)
	Markdown(doc *types.Document) string
}

// SupplementSource looks up supplementary material by PMCID.
// *supplement.Fetcher implements it.
type SupplementSource interface {
	Markdown(ctx context.Context, pmcid string) (string, bool, error)
	MarkdownOrFallback(ctx context.Context, pmcid string) string
}

// Ledger records every written document. *store.Store implements it.
type Ledger interface {
	PutRecord(ctx context.Context, r types.Record) error
}

// Result holds the outcome of a batch conversion run.
type Result struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of articles processed.
func (r Result) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any article failed conversion.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

func (r *Result) add(s types.ConversionStatus) {
	switch s {
	case types.ConversionDone, types.ConversionAbstract:
		r.Converted++
	case types.ConversionNone:
		r.Skipped++
	case types.ConversionFailed:
		r.Failed++
	}
}

// Converter writes markdown for the articles of one data directory.
type Converter struct {
	engine      Engine
	dataDir     string
	overwrite   bool
	workers     int
	supplements SupplementSource
	ledger      Ledger
	log         *slog.Logger
	now         func() time.Time
}

// Option configures a Converter.
type Option func(*Converter)

// WithSupplements appends supplementary material (or the fallback note)
// to every full-text document.
func WithSupplements(s SupplementSource) Option {
	return func(c *Converter) { c.supplements = s }
}

// WithLedger records each written document in l.
func WithLedger(l Ledger) Option {
	return func(c *Converter) { c.ledger = l }
}

// WithLogger sets the logger for per-article diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.log = l }
}

// New returns a Converter over cfg.DataDir.
func New(engine Engine, cfg types.ConversionConfig, opts ...Option) *Converter {
	c := &Converter{
		engine:    engine,
		dataDir:   cfg.DataDir,
		overwrite: cfg.Overwrite,
		workers:   cfg.Workers,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	if c.workers <= 0 {
		c.workers = DefaultWorkers
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MarkdownPath returns the markdown file for id.
func (c *Converter) MarkdownPath(id string) string {
	return filepath.Join(c.dataDir, MarkdownDir, id+".md")
}

// HTMLPath returns the HTML file for id.
func (c *Converter) HTMLPath(id string) string {
	return filepath.Join(c.dataDir, HTMLDir, id+".html")
}

// HasSupplements reports whether a supplement source is configured.
func (c *Converter) HasSupplements() bool {
	return c.supplements != nil
}

// Exists reports whether markdown for id is already present.
func (c *Converter) Exists(id string) bool {
	_, err := os.Stat(c.MarkdownPath(id))
	return err == nil
}

// ConvertFile converts one HTML file to markdown/<id>.md, where id is the
// file's base name. Existing markdown is kept unless overwrite is set.
func (c *Converter) ConvertFile(ctx context.Context, htmlPath string, w io.Writer) types.ConversionStatus {
	id := strings.TrimSuffix(filepath.Base(htmlPath), filepath.Ext(htmlPath))

	if !c.overwrite && c.Exists(id) {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", id)
		return types.ConversionNone
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		return types.ConversionFailed
	}

	src, err := os.ReadFile(htmlPath)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		return types.ConversionFailed
	}

	doc, warnings, err := c.engine.Convert(string(src))
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		return types.ConversionFailed
	}

	pmcid := doc.Metadata.PMCID
	if pmcid == "" && strings.HasPrefix(id, "PMC") {
		pmcid = id
	}
	if c.supplements != nil && pmcid != "" {
		doc.Supplement = c.supplements.MarkdownOrFallback(ctx, pmcid)
	}

	if err := c.WriteDocument(ctx, id, doc, warnings, htmlPath, types.ConversionDone); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		return types.ConversionFailed
	}
	if len(warnings) > 0 {
		c.log.Info("converted with warnings", "article", id, "warnings", len(warnings))
	}
	fmt.Fprintf(w, "converted: %s\n", id)
	return types.ConversionDone
}

// WriteDocument renders doc to markdown/<id>.md, writes its sidecar and
// records it in the ledger.
func (c *Converter) WriteDocument(ctx context.Context, id string, doc *types.Document, warnings types.Warnings, sourceHTML string, status types.ConversionStatus) error {
	for _, dir := range []string{
		filepath.Join(c.dataDir, MarkdownDir),
		filepath.Join(c.dataDir, MetadataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	mdPath := c.MarkdownPath(id)
	if err := WriteFile(mdPath, []byte(c.engine.Markdown(doc))); err != nil {
		return fmt.Errorf("writing markdown: %w", err)
	}

	meta := types.ArticleMetadata{
		Metadata:    doc.Metadata,
		SourceHTML:  c.rel(sourceHTML),
		ConvertedAt: c.now().UTC().Truncate(time.Second),
		Sections:    len(doc.Sections),
		References:  len(doc.Bibliography),
		Warnings:    warnings,
		Status:      status,
	}
	if err := WriteMetadata(filepath.Join(c.dataDir, MetadataDir, id+".yaml"), &meta); err != nil {
		return err
	}

	if c.ledger == nil {
		return nil
	}
	rec := types.Record{
		PMCID:        doc.Metadata.PMCID,
		PMID:         doc.Metadata.PMID,
		URL:          doc.Metadata.URL,
		Title:        doc.Metadata.Title,
		MarkdownPath: c.rel(mdPath),
		Status:       status,
	}
	if rec.ID() == "" && strings.HasPrefix(id, "PMC") {
		rec.PMCID = id
	}
	if info, err := os.Stat(mdPath); err == nil {
		rec.UpdatedAt = info.ModTime().UTC().Truncate(time.Microsecond)
	}
	if err := c.ledger.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("recording %s: %w", id, err)
	}
	return nil
}

func (c *Converter) rel(path string) string {
	if path == "" {
		return ""
	}
	if r, err := filepath.Rel(c.dataDir, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return path
}

// ConvertPaths converts htmlPaths with at most the configured number of
// workers, printing per-file status to w and returning a summary.
func (c *Converter) ConvertPaths(ctx context.Context, htmlPaths []string, w io.Writer) Result {
	sw := &syncWriter{w: w}
	statuses := make([]types.ConversionStatus, len(htmlPaths))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, p := range htmlPaths {
		g.Go(func() error {
			statuses[i] = c.ConvertFile(ctx, p, sw)
			return nil
		})
	}
	g.Wait()

	var result Result
	for _, s := range statuses {
		result.add(s)
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// ConvertDir converts every html/*.html file of the data directory in
// name order.
func (c *Converter) ConvertDir(ctx context.Context, w io.Writer) (Result, error) {
	paths, err := listFiles(filepath.Join(c.dataDir, HTMLDir), ".html")
	if err != nil {
		return Result{}, err
	}
	return c.ConvertPaths(ctx, paths, w), nil
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// syncWriter serialises status lines from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
