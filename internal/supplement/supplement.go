// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package supplement fetches supplementary-material text from the BioC
// service and formats it as the markdown fragment the converter appends
// after the references.
package supplement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/pubmed-markdown/internal/httputil"
	"github.com/pdiddy/pubmed-markdown/internal/store"
)

// biocBase is the BioC supplementary-material endpoint. Declared as a var
// so tests can substitute an httptest server.
var biocBase = "https://www.ncbi.nlm.nih.gov/research/bionlp/RESTful/supplmat.cgi/BioC_JSON/"

const (
	// Heading opens the supplement fragment.
	Heading = "## Supplementary Materials"

	// Fallback is appended when no supplement is available.
	Fallback = Heading + "\n\nNo supplementary materials found."

	// minResponse is the shortest body that can hold a BioC collection.
	minResponse = 50
)

var biocFileHeading = regexp.MustCompile(`(?m)^###\s+.*\.pdf\s*$`)

// Getter issues rate-limited GET requests. *httputil.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error)
}

// Cache stores lookups. *store.Store implements it.
type Cache interface {
	Supplement(ctx context.Context, pmcid string) (store.Supplement, error)
	PutSupplement(ctx context.Context, pmcid string, available bool, markdown string) error
}

// Document is one supplementary file and its extracted passages.
type Document struct {
	Filename string
	Text     string
}

// Fetcher retrieves supplements by PMCID.
type Fetcher struct {
	client Getter
	cache  Cache
	log    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache enables caching through c.
func WithCache(c Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithLogger sets the logger for lookup diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// New returns a Fetcher that issues requests through client.
func New(client Getter, opts ...Option) *Fetcher {
	f := &Fetcher{client: client, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Markdown returns the formatted supplement for pmcid and whether one
// exists. A definite "none" (non-2xx, short or non-JSON body, no passages)
// is cached; transport errors are returned and not cached.
func (f *Fetcher) Markdown(ctx context.Context, pmcid string) (string, bool, error) {
	if f.cache != nil {
		sup, err := f.cache.Supplement(ctx, pmcid)
		if err == nil {
			return sup.Markdown, sup.Available, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", false, fmt.Errorf("reading supplement cache: %w", err)
		}
	}

	md, ok, err := f.fetch(ctx, pmcid)
	if err != nil {
		return "", false, err
	}
	if f.cache != nil {
		if err := f.cache.PutSupplement(ctx, pmcid, ok, md); err != nil {
			return md, ok, fmt.Errorf("caching supplement: %w", err)
		}
	}
	return md, ok, nil
}

// MarkdownOrFallback returns the supplement for pmcid, or Fallback when
// there is none or the lookup failed.
func (f *Fetcher) MarkdownOrFallback(ctx context.Context, pmcid string) string {
	md, ok, err := f.Markdown(ctx, pmcid)
	if err != nil {
		f.log.Warn("supplement lookup failed", "pmcid", pmcid, "error", err)
	}
	if !ok {
		return Fallback
	}
	return md
}

func (f *Fetcher) fetch(ctx context.Context, pmcid string) (string, bool, error) {
	body, err := f.client.Get(ctx, biocBase+pmcid+"/All", nil, "application/json")
	var se *httputil.StatusError
	if errors.As(err, &se) {
		f.log.Debug("no supplements", "pmcid", pmcid, "status", se.Code)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fetching supplements for %s: %w", pmcid, err)
	}
	if len(bytes.TrimSpace(body)) < minResponse {
		f.log.Debug("no supplements", "pmcid", pmcid, "reason", "empty response")
		return "", false, nil
	}

	docs, err := Parse(body)
	if err != nil {
		// The service answers with an HTML page when nothing exists.
		f.log.Debug("no supplements", "pmcid", pmcid, "reason", err)
		return "", false, nil
	}
	if len(docs) == 0 {
		return "", false, nil
	}
	return Format(docs), true, nil
}

type collection struct {
	Documents []struct {
		ID       string `json:"id"`
		Passages []struct {
			Text string `json:"text"`
		} `json:"passages"`
	} `json:"documents"`
}

// Parse extracts per-file passages from a BioC JSON response, which is
// either one collection or a list of them. Files without text are dropped.
func Parse(data []byte) ([]Document, error) {
	data = bytes.TrimSpace(data)
	var cols []collection
	switch {
	case bytes.HasPrefix(data, []byte("[")):
		if err := json.Unmarshal(data, &cols); err != nil {
			return nil, fmt.Errorf("decoding BioC collections: %w", err)
		}
	case bytes.HasPrefix(data, []byte("{")):
		var c collection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decoding BioC collection: %w", err)
		}
		cols = []collection{c}
	default:
		return nil, errors.New("response is not BioC JSON")
	}

	var out []Document
	for _, c := range cols {
		for _, d := range c.Documents {
			var passages []string
			for _, p := range d.Passages {
				if p.Text != "" {
					passages = append(passages, p.Text)
				}
			}
			if len(passages) == 0 {
				continue
			}
			name := d.ID
			if name == "" {
				name = "unknown"
			}
			out = append(out, Document{Filename: name, Text: strings.Join(passages, "\n\n")})
		}
	}
	return out, nil
}

// Format renders docs under Heading with one ### subsection per file.
func Format(docs []Document) string {
	lines := []string{Heading}
	for _, d := range docs {
		lines = append(lines, "\n### "+d.Filename+"\n", d.Text)
	}
	return strings.Join(lines, "\n")
}

// HasBioC reports whether md already carries BioC supplement text, which
// is recognisable by a ### heading naming a PDF file.
func HasBioC(md string) bool {
	return strings.Contains(md, Heading) && biocFileHeading.MatchString(md)
}

// Apply appends sup to md, replacing any existing supplement section. It
// reports false and leaves md untouched when md already holds BioC text
// and overwrite is off.
func Apply(md, sup string, overwrite bool) (string, bool) {
	if HasBioC(md) && !overwrite {
		return md, false
	}
	if i := headingIndex(md); i >= 0 {
		md = md[:i]
	}
	return strings.TrimRight(md, " \t\n") + "\n\n" + strings.TrimSpace(sup) + "\n", true
}

// headingIndex finds Heading at the start of a line.
func headingIndex(md string) int {
	if strings.HasPrefix(md, Heading) {
		return 0
	}
	if i := strings.Index(md, "\n"+Heading); i >= 0 {
		return i + 1
	}
	return -1
}
