// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/pubmed-markdown/internal/render"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

func para(s string) types.Block {
	return types.Block{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{Inlines: []types.Inline{{Kind: types.InlineText, Text: s}}}}
}

func TestHeader(t *testing.T) {
	tests := []struct {
		name string
		meta types.Metadata
		want string
	}{
		{
			name: "all fields",
			meta: types.Metadata{
				Title:    "A Study",
				Authors:  []string{"Ann Lee", "Bo Chen"},
				Journal:  "Cell",
				Date:     "2020 Jan 5",
				DOI:      "10.1/abc",
				PMID:     "123",
				PMCID:    "PMC456",
				URL:      "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC456/",
				PDFURL:   "https://x.org/a.pdf",
				Keywords: []string{"yeast", "genes"},
			},
			want: "# A Study\n\n## Metadata\n" +
				"**Authors:** Ann Lee, Bo Chen\n" +
				"**Journal:** Cell\n" +
				"**Date:** 2020 Jan 5\n" +
				"**DOI:** [10.1/abc](https://doi.org/10.1/abc)\n" +
				"**PMID:** 123\n" +
				"**PMCID:** PMC456\n" +
				"**URL:** https://www.ncbi.nlm.nih.gov/pmc/articles/PMC456/\n" +
				"**PDF:** [https://x.org/a.pdf](https://x.org/a.pdf)\n" +
				"**Keywords:** yeast, genes",
		},
		{
			name: "missing fields omitted",
			meta: types.Metadata{Title: "T", PMID: "9"},
			want: "# T\n\n## Metadata\n**PMID:** 9",
		},
		{
			name: "no metadata at all",
			want: "## Metadata",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Header(tt.meta))
		})
	}
}

func TestMarkdown_Layout(t *testing.T) {
	doc := &types.Document{
		Metadata: types.Metadata{Title: "Paper"},
		Sections: []types.Section{
			{Blocks: []types.Block{para("Lead text.")}},
			{Level: 2, Title: "Abstract", Blocks: []types.Block{para("Summary.")}},
			{Level: 2, Title: "Methods", Blocks: []types.Block{
				{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{Inlines: []types.Inline{
					{Kind: types.InlineText, Text: "As shown "},
					{Kind: types.InlineCitation, Keys: []string{"ref1"}},
					{Kind: types.InlineText, Text: "."},
				}}},
			}, Subsections: []types.Section{
				{Level: 4, Title: "Deep", Blocks: []types.Block{para("Skipped a level.")}},
			}},
		},
		Bibliography: []types.BibliographyEntry{{Index: 1, Key: "ref1", Text: "Smith 2020"}},
		Supplement:   "## Supplementary Materials\n\nNo supplementary materials found.",
	}

	want := "# Paper\n\n## Metadata\n\n" +
		"Lead text.\n\n" +
		"## Abstract\n\nSummary.\n\n" +
		"## Methods\n\nAs shown [[1]](#ref-1).\n\n" +
		"#### Deep\n\nSkipped a level.\n\n" +
		"## References\n\n1. Smith 2020 <a id=\"ref-1\"></a>\n\n" +
		"## Supplementary Materials\n\nNo supplementary materials found.\n"
	assert.Equal(t, want, Markdown(doc, render.Options{}))
}

func TestMarkdown_HeadingDepthClamped(t *testing.T) {
	doc := &types.Document{Sections: []types.Section{
		{Level: 1, Title: "Top", Subsections: []types.Section{
			{Level: 2, Title: "Child", Subsections: []types.Section{
				{Level: 6, Title: "A", Subsections: []types.Section{{Level: 6, Title: "B"}}},
			}},
		}},
	}}

	out := Markdown(doc, render.Options{})
	assert.Contains(t, out, "\n## Top\n")
	assert.Contains(t, out, "\n### Child\n")
	assert.Contains(t, out, "\n###### A\n")
	assert.Contains(t, out, "\n###### B\n")
}

func TestMarkdown_EmptyDocument(t *testing.T) {
	assert.Equal(t, "## Metadata\n\n## References\n", Markdown(&types.Document{}, render.Options{}))
}

func TestMarkdown_Deterministic(t *testing.T) {
	doc := &types.Document{
		Metadata: types.Metadata{Title: "T"},
		Sections: []types.Section{{Level: 2, Title: "S", Blocks: []types.Block{
			{Kind: types.BlockTable, Table: &types.Table{Rows: [][]string{{"a", "b"}, {"c"}}}},
			{Kind: types.BlockFigure, Figure: &types.Figure{Caption: "Cap.", ImageURL: "/f.png"}},
		}}},
	}
	assert.Equal(t, Markdown(doc, render.Options{}), Markdown(doc, render.Options{}))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing whitespace", "a  \nb\t\n", "a\nb\n"},
		{"blank runs collapsed", "a\n\n\n\nb", "a\n\nb\n"},
		{"leading and trailing newlines", "\n\na\n\n\n", "a\n"},
		{"fenced blank lines kept", "```mathml\n<math>\n\n\n</math>\n```", "```mathml\n<math>\n\n\n</math>\n```\n"},
		{"display math kept verbatim", "x\n\n$$\na \\\\\n\n\n b\n$$\n\n\ny", "x\n\n$$\na \\\\\n\n\n b\n$$\n\ny\n"},
		{"inline dollars are not fences", "$$x$$\n\n\nb", "$$x$$\n\nb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
