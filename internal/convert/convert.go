// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert is the entry point of the conversion engine: PMC article
// HTML in, a Document or canonical markdown out.
//
// A conversion is a pure, synchronous function of its input. Nothing is
// fetched, cached, or written, and no state survives between calls, so an
// Engine may be used from many goroutines at once.
package convert

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pdiddy/pubmed-markdown/internal/assemble"
	"github.com/pdiddy/pubmed-markdown/internal/metadata"
	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/internal/references"
	"github.com/pdiddy/pubmed-markdown/internal/render"
	"github.com/pdiddy/pubmed-markdown/internal/sections"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// ErrMalformedInput is returned (wrapped) when the input cannot be treated
// as HTML at all. It is the only fatal conversion error.
var ErrMalformedInput = normalize.ErrMalformedInput

// Converter transforms article HTML into markdown. Batch callers depend on
// this interface so tests can substitute a fake.
type Converter interface {
	// ConvertToMarkdown converts src and returns the markdown together with
	// the non-fatal warnings raised along the way.
	ConvertToMarkdown(src string) (string, types.Warnings, error)
}

// Options configures an Engine.
type Options struct {
	Render     render.Options
	Supplement string
	Logger     *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithSupplement appends a pre-rendered markdown fragment after the
// references section.
func WithSupplement(md string) Option {
	return func(o *Options) { o.Supplement = md }
}

// WithBaseURL sets the base that relative image and link targets resolve
// against.
func WithBaseURL(base string) Option {
	return func(o *Options) { o.Render.BaseURL = base }
}

// WithImagePolicy selects how image references are emitted.
func WithImagePolicy(p types.ImagePolicy) Option {
	return func(o *Options) { o.Render.ImagePolicy = p }
}

// WithImageRewriter maps every emitted image URL through fn.
func WithImageRewriter(fn func(src string) string) Option {
	return func(o *Options) { o.Render.RewriteImage = fn }
}

// WithLogger sets the logger that receives one Warn record per conversion
// warning. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Engine converts documents with a fixed set of options.
type Engine struct {
	opts Options
}

// New returns an Engine configured by opts.
func New(opts ...Option) *Engine {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{opts: o}
}

// Convert parses src and builds its Document. Only input that cannot be
// parsed as HTML fails; every other anomaly becomes a warning.
func (e *Engine) Convert(src string) (*types.Document, types.Warnings, error) {
	tree, err := normalize.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing article html: %w", err)
	}

	var warnings types.Warnings

	meta, w := metadata.Extract(tree)
	warnings = append(warnings, w...)

	catalog, w := references.Collect(tree)
	warnings = append(warnings, w...)

	secs, w := sections.Extract(tree, sections.Options{
		Title:      meta.Title,
		References: catalog.Keys(),
	})
	warnings = append(warnings, w...)

	// First pass numbers citations in document order; the bibliography is
	// final only after every section has been walked.
	resolver := references.NewResolver(catalog)
	resolver.Walk(secs)
	bib := resolver.Finalize()
	warnings = append(warnings, resolver.Warnings()...)

	doc := &types.Document{
		Metadata:     meta,
		Sections:     secs,
		Bibliography: bib,
		Supplement:   e.opts.Supplement,
	}
	e.log(meta, warnings)
	return doc, warnings, nil
}

// ConvertToMarkdown converts src and renders the canonical markdown.
func (e *Engine) ConvertToMarkdown(src string) (string, types.Warnings, error) {
	doc, warnings, err := e.Convert(src)
	if err != nil {
		return "", nil, err
	}
	return e.Markdown(doc), warnings, nil
}

// Markdown renders an already converted document.
func (e *Engine) Markdown(doc *types.Document) string {
	return assemble.Markdown(doc, e.opts.Render)
}

func (e *Engine) log(meta types.Metadata, warnings types.Warnings) {
	id := meta.PMCID
	if id == "" {
		id = meta.PMID
	}
	for _, w := range warnings {
		e.opts.Logger.Warn("conversion warning",
			"article", id,
			"kind", string(w.Kind),
			"section", w.Section,
			"message", w.Message,
		)
	}
}

// Convert is a convenience wrapper around New(opts...).Convert.
func Convert(src string, opts ...Option) (*types.Document, types.Warnings, error) {
	return New(opts...).Convert(src)
}

// ConvertToMarkdown is a convenience wrapper around
// New(opts...).ConvertToMarkdown.
func ConvertToMarkdown(src string, opts ...Option) (string, types.Warnings, error) {
	return New(opts...).ConvertToMarkdown(src)
}

// Markdown renders doc with the given options.
func Markdown(doc *types.Document, opts ...Option) string {
	return New(opts...).Markdown(doc)
}
