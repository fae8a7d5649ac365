// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package references

import (
	"strconv"
	"strings"

	"github.com/pdiddy/pubmed-markdown/internal/render"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// RenderBibliography renders entries as a numbered markdown list, one
// entry per line, each ending with the anchor its citations link to.
// Returns "" for an empty bibliography.
func RenderBibliography(entries []types.BibliographyEntry, ctx *render.Context) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line(e, ctx))
	}
	return strings.Join(lines, "\n")
}

// Line renders one bibliography entry.
func Line(e types.BibliographyEntry, ctx *render.Context) string {
	parts := []string{strconv.Itoa(e.Index) + "."}

	switch {
	case e.Unresolved:
		parts = append(parts, "[unresolved citation: "+e.Key+"]")
	case e.Text != "":
		parts = append(parts, e.Text)
	case e.Title != "":
		parts = append(parts, e.Title)
	default:
		parts = append(parts, e.Key)
	}

	if links := linkList(e, ctx); links != "" {
		parts = append(parts, links)
	}
	parts = append(parts, `<a id="`+render.Anchor(e.Index)+`"></a>`)
	return strings.Join(parts, " ")
}

func linkList(e types.BibliographyEntry, ctx *render.Context) string {
	var links []string
	add := func(label, href string) {
		if href != "" {
			links = append(links, "["+label+"]("+ctx.URL(href)+")")
		}
	}
	add("DOI", e.DOIURL)
	add("PMC", e.PMCURL)
	add("PubMed", e.PubMedURL)
	for _, l := range e.Links {
		add(l.Label, l.URL)
	}
	return strings.Join(links, " | ")
}
