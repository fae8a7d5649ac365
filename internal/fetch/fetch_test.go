// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubmed-markdown/internal/httputil"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

func testServer(t *testing.T, h http.HandlerFunc) *httputil.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	orig := articleBase
	articleBase = ts.URL + "/pmc/articles/"
	t.Cleanup(func() { articleBase = orig })

	return httputil.NewClient(types.HTTPConfig{}, 1000, httputil.WithDoer(ts.Client()))
}

func TestHTML(t *testing.T) {
	var gotPath, gotQuery, gotAccept string
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotAccept = r.URL.Path, r.URL.RawQuery, r.Header.Get("Accept")
		w.Write([]byte("<html><body>article</body></html>"))
	})

	body, err := New(client).HTML(context.Background(), " pmc123 ")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>article</body></html>", string(body))
	assert.Equal(t, "/pmc/articles/PMC123/", gotPath)
	assert.Equal(t, "report=classic", gotQuery)
	assert.Contains(t, gotAccept, "text/html")
}

func TestHTML_Errors(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pmc/articles/PMC404/":
			http.NotFound(w, r)
		case "/pmc/articles/PMC2/":
			w.Write([]byte("  \n"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	f := New(client)
	ctx := context.Background()

	tests := []struct {
		name     string
		pmcid    string
		notFound bool
		contains string
	}{
		{name: "invalid id", pmcid: "12345", contains: "invalid PMCID"},
		{name: "not found", pmcid: "PMC404", notFound: true},
		{name: "empty body", pmcid: "PMC2", contains: "empty response"},
		{name: "server error", pmcid: "PMC3", contains: "HTTP 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.HTML(ctx, tt.pmcid)
			require.Error(t, err)
			if tt.notFound {
				assert.ErrorIs(t, err, httputil.ErrNotFound)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestArticleURL(t *testing.T) {
	assert.Equal(t, "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC7/", ArticleURL("PMC7"))
}
