// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads PMC article pages.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// articleBase is the PMC article root. Declared as a var so tests can
// substitute an httptest server.
var articleBase = "https://www.ncbi.nlm.nih.gov/pmc/articles/"

const htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

var pmcidPattern = regexp.MustCompile(`^PMC\d+$`)

// Getter issues rate-limited GET requests. *httputil.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error)
}

// Fetcher retrieves article HTML by PMCID.
type Fetcher struct {
	client Getter
}

// New returns a Fetcher that issues requests through client.
func New(client Getter) *Fetcher {
	return &Fetcher{client: client}
}

// ArticleURL returns the landing page of pmcid.
func ArticleURL(pmcid string) string {
	return articleBase + pmcid + "/"
}

// HTML returns the classic-report page of pmcid. A 404 surfaces as an error
// matching httputil.ErrNotFound.
func (f *Fetcher) HTML(ctx context.Context, pmcid string) ([]byte, error) {
	pmcid = strings.ToUpper(strings.TrimSpace(pmcid))
	if !pmcidPattern.MatchString(pmcid) {
		return nil, fmt.Errorf("invalid PMCID %q", pmcid)
	}

	body, err := f.client.Get(ctx, ArticleURL(pmcid), url.Values{"report": {"classic"}}, htmlAccept)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pmcid, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("fetching %s: empty response", pmcid)
	}
	return body, nil
}
