// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package idconv maps PubMed identifiers to PubMed Central identifiers
// through the NCBI ID Converter service, caching every answer.
package idconv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/pubmed-markdown/internal/store"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// apiBase is the ID Converter endpoint. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"

const (
	// BatchSize is the most identifiers the service accepts per request.
	BatchSize = 200

	// DefaultTTL is how long a cached answer stays valid.
	DefaultTTL = 30 * 24 * time.Hour

	defaultTool = "pubmed-markdown"
)

// Getter issues rate-limited GET requests. *httputil.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error)
}

// Cache stores conversions. An empty PMCID is a cached miss.
// *store.Store implements it.
type Cache interface {
	PMCID(ctx context.Context, pmid string, maxAge time.Duration) (string, error)
	PutPMCIDs(ctx context.Context, mapping map[string]string) error
}

// Converter resolves PMIDs in batches.
type Converter struct {
	client Getter
	cache  Cache
	ncbi   types.NCBIConfig
	ttl    time.Duration
	log    *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithCache enables caching through c.
func WithCache(c Cache) Option {
	return func(cv *Converter) { cv.cache = c }
}

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(cv *Converter) {
		if d > 0 {
			cv.ttl = d
		}
	}
}

// WithLogger sets the logger for batch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cv *Converter) { cv.log = l }
}

// New returns a Converter identifying itself with ncbi.
func New(client Getter, ncbi types.NCBIConfig, opts ...Option) *Converter {
	cv := &Converter{
		client: client,
		ncbi:   ncbi,
		ttl:    DefaultTTL,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cv)
	}
	if cv.ncbi.Tool == "" {
		cv.ncbi.Tool = defaultTool
	}
	return cv
}

// Result maps every requested PMID to its PMCID, or "" when PMC has no copy.
type Result map[string]string

// Found returns the PMCIDs of pmids that have one, in pmids order.
func (r Result) Found(pmids []string) []string {
	var out []string
	for _, p := range pmids {
		if id := r[strings.TrimSpace(p)]; id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Convert resolves pmids. Cached answers are served first; the rest go to
// the service in batches of BatchSize. A failed batch maps its PMIDs to ""
// and caches that miss, so a later run does not hammer the service.
func (cv *Converter) Convert(ctx context.Context, pmids []string) (Result, error) {
	if cv.ncbi.Email == "" {
		cv.log.Warn("no NCBI email configured; set download.email, --email, or .secrets/ncbi-email")
	}

	res := make(Result, len(pmids))
	var pending []string
	seen := make(map[string]bool, len(pmids))
	for _, p := range pmids {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if cv.cache != nil {
			id, err := cv.cache.PMCID(ctx, p, cv.ttl)
			if err == nil {
				res[p] = id
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("reading cache for %s: %w", p, err)
			}
		}
		pending = append(pending, p)
	}
	cached := len(res)

	for start := 0; start < len(pending); start += BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := pending[start:min(start+BatchSize, len(pending))]

		got, err := cv.fetch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			cv.log.Error("idconv batch failed", "start", start, "size", len(batch), "error", err)
			got = map[string]string{}
		}
		for _, p := range batch {
			if _, ok := got[p]; !ok {
				got[p] = ""
			}
			res[p] = got[p]
		}
		if cv.cache != nil {
			if err := cv.cache.PutPMCIDs(ctx, got); err != nil {
				return res, fmt.Errorf("caching batch: %w", err)
			}
		}
	}

	cv.log.Info("converted pmids",
		"total", len(res), "found", len(res.Found(pmids)),
		"cached", cached, "fetched", len(pending))
	return res, nil
}

type response struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Records []record `json:"records"`
}

type record struct {
	PMID   flexString `json:"pmid"`
	PMCID  string     `json:"pmcid"`
	ErrMsg string     `json:"errmsg"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s = v
	}
	*f = flexString(strings.TrimSpace(s))
	return nil
}

func (cv *Converter) fetch(ctx context.Context, batch []string) (map[string]string, error) {
	q := url.Values{
		"tool":   {cv.ncbi.Tool},
		"ids":    {strings.Join(batch, ",")},
		"format": {"json"},
	}
	if cv.ncbi.Email != "" {
		q.Set("email", cv.ncbi.Email)
	}
	if cv.ncbi.APIKey != "" {
		q.Set("api_key", cv.ncbi.APIKey)
	}

	body, err := cv.client.Get(ctx, apiBase, q, "application/json")
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding idconv response: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("idconv: %s", resp.Message)
	}

	out := make(map[string]string, len(batch))
	for _, r := range resp.Records {
		if r.PMID == "" {
			continue
		}
		out[string(r.PMID)] = strings.TrimSpace(r.PMCID)
	}
	return out, nil
}
