// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble composes a converted document into its canonical
// markdown layout: metadata header, sections in source order, references,
// and the optional supplement.
package assemble

import (
	"strings"

	"github.com/pdiddy/pubmed-markdown/internal/references"
	"github.com/pdiddy/pubmed-markdown/internal/render"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// ReferencesTitle heads the bibliography section.
const ReferencesTitle = "References"

const (
	minDepth = 2
	maxDepth = 6
)

// Markdown renders doc. The same document and options always produce the
// same bytes.
func Markdown(doc *types.Document, opts render.Options) string {
	ctx := render.NewContext(references.NewIndex(doc.Bibliography), opts)

	parts := []string{Header(doc.Metadata)}
	for _, s := range doc.Sections {
		parts = appendSection(parts, ctx, s, minDepth-1)
	}

	parts = append(parts, "## "+ReferencesTitle)
	if bib := references.RenderBibliography(doc.Bibliography, ctx); bib != "" {
		parts = append(parts, bib)
	}
	if sup := strings.TrimSpace(doc.Supplement); sup != "" {
		parts = append(parts, sup)
	}
	return Clean(strings.Join(parts, "\n\n"))
}

// Header renders the title and the bold-labelled metadata fields. Missing
// fields are omitted; the "## Metadata" heading is always present.
func Header(m types.Metadata) string {
	var lines []string
	if m.Title != "" {
		lines = append(lines, "# "+m.Title, "")
	}
	lines = append(lines, "## Metadata")

	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, "**"+label+":** "+value)
		}
	}
	field("Authors", strings.Join(m.Authors, ", "))
	field("Journal", m.Journal)
	field("Date", m.Date)
	if m.DOI != "" {
		field("DOI", "["+m.DOI+"](https://doi.org/"+m.DOI+")")
	}
	field("PMID", m.PMID)
	field("PMCID", m.PMCID)
	field("URL", m.URL)
	if m.PDFURL != "" {
		field("PDF", "["+m.PDFURL+"]("+m.PDFURL+")")
	}
	field("Keywords", strings.Join(m.Keywords, ", "))
	return strings.Join(lines, "\n")
}

// appendSection renders s and its subsections. A heading is never
// shallower than one level below its parent, so clamping a level 1 source
// heading keeps its children nested.
func appendSection(parts []string, ctx *render.Context, s types.Section, parent int) []string {
	depth := parent
	if s.Level > 0 && s.Title != "" {
		depth = min(max(s.Level, parent+1, minDepth), maxDepth)
		parts = append(parts, strings.Repeat("#", depth)+" "+s.Title)
	}
	for _, b := range s.Blocks {
		if out := ctx.Block(b); out != "" {
			parts = append(parts, out)
		}
	}
	for _, sub := range s.Subsections {
		parts = appendSection(parts, ctx, sub, depth)
	}
	return parts
}

// Clean strips trailing whitespace from every line, collapses blank-line
// runs to one blank line, and ends the text with a single newline. Lines
// inside ``` fences and $$ display blocks are kept verbatim.
func Clean(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	fence, blank := "", false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		switch {
		case fence == "" && strings.HasPrefix(trimmed, "```"):
			fence = "```"
		case fence == "" && trimmed == "$$":
			fence = "$$"
		case fence == "```" && strings.HasPrefix(trimmed, "```"),
			fence == "$$" && trimmed == "$$":
			fence = ""
		case fence != "":
			out = append(out, line)
			blank = false
			continue
		}
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n") + "\n"
}
