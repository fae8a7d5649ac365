// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// fakeCitations resolves keys from a fixed map.
type fakeCitations map[string]types.BibliographyEntry

func (f fakeCitations) Entry(key string) (types.BibliographyEntry, bool) {
	e, ok := f[key]
	return e, ok
}

func text(s string) types.Inline { return types.Inline{Kind: types.InlineText, Text: s} }

func TestTable(t *testing.T) {
	tests := []struct {
		name  string
		table types.Table
		want  string
	}{
		{
			name: "two by two with label and caption",
			table: types.Table{
				Label:   "Table 1",
				Caption: "Counts.",
				Rows:    [][]string{{"a", "b"}, {"c", "d"}},
			},
			want: "*Table 1. Counts.*\n\n| a | b |\n| --- | --- |\n| c | d |",
		},
		{
			name:  "ragged rows are padded and pipes escaped",
			table: types.Table{Rows: [][]string{{"x|y"}, {"1", "2", "3"}}},
			want:  "*Table 1.*\n\n| x\\|y |  |  |\n| --- | --- | --- |\n| 1 | 2 | 3 |",
		},
		{
			name:  "footnote follows the table",
			table: types.Table{Label: "Table 2", Rows: [][]string{{"h"}, {"v"}}, Footnote: "n = 12."},
			want:  "*Table 2.*\n\n| h |\n| --- |\n| v |\n\nn = 12.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext(nil, Options{})
			assert.Equal(t, tt.want, ctx.Table(tt.table))
		})
	}
}

func TestTable_CitedCells(t *testing.T) {
	cite := func(key string) types.Inline { return types.Inline{Kind: types.InlineCitation, Keys: []string{key}} }
	tests := []struct {
		name  string
		table types.Table
		want  string
	}{
		{
			name: "cell run replaces plain text",
			table: types.Table{
				Label: "Table 1",
				Rows:  [][]string{{"h1", "h2"}, {"x 1", "y"}},
				Cells: [][][]types.Inline{nil, {{text("x "), cite("B1")}, nil}},
			},
			want: "*Table 1.*\n\n| h1 | h2 |\n| --- | --- |\n| x [[1]](#ref-1) | y |",
		},
		{
			name: "cited caption",
			table: types.Table{
				Label:          "Table 2",
				Caption:        "After 2.",
				CaptionInlines: []types.Inline{text("After "), cite("B2"), text(".")},
				Rows:           [][]string{{"a"}},
			},
			want: "*Table 2. After [[2]](#ref-2).*\n\n| a |\n| --- |",
		},
	}
	cites := fakeCitations{"B1": {Index: 1, Key: "B1"}, "B2": {Index: 2, Key: "B2"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewContext(cites, Options{}).Table(tt.table))
		})
	}
}

func TestTable_PreservesShape(t *testing.T) {
	rows := [][]string{{"a", "b", "c"}, {"1"}, {"2", "3"}, {}}
	out := NewContext(nil, Options{}).Table(types.Table{Label: "Table 9", Rows: rows})

	var tableLines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "|") && !strings.Contains(l, "---") {
			tableLines = append(tableLines, l)
		}
	}
	assert.Len(t, tableLines, len(rows))
	for _, l := range tableLines {
		assert.Equal(t, 4, strings.Count(l, "|"), l)
	}
}

func TestTable_AutoNumbering(t *testing.T) {
	ctx := NewContext(nil, Options{})
	first := ctx.Table(types.Table{Rows: [][]string{{"a"}}})
	second := ctx.Table(types.Table{Label: "Table 7", Rows: [][]string{{"a"}}})
	third := ctx.Table(types.Table{Rows: [][]string{{"a"}}})

	assert.True(t, strings.HasPrefix(first, "*Table 1.*"))
	assert.True(t, strings.HasPrefix(second, "*Table 7.*"))
	assert.True(t, strings.HasPrefix(third, "*Table 3.*"))
}

func TestFigure(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		figure types.Figure
		want   string
	}{
		{
			name:   "relative source made absolute",
			figure: types.Figure{Label: "Figure 1", Caption: "Growth.", ImageURL: "/pmc/f1.jpg", Alt: "curve"},
			want:   "![curve](https://pmc.ncbi.nlm.nih.gov/pmc/f1.jpg)\n**Figure 1.** Growth.",
		},
		{
			name:   "protocol relative source",
			figure: types.Figure{Label: "Figure 2", ImageURL: "//cdn.ncbi.nlm.nih.gov/f2.png"},
			want:   "![Figure 2](https://cdn.ncbi.nlm.nih.gov/f2.png)\n**Figure 2.**",
		},
		{
			name:   "original policy keeps source",
			opts:   Options{ImagePolicy: types.ImageOriginal},
			figure: types.Figure{Label: "Figure 3", ImageURL: "f3.jpg"},
			want:   "![Figure 3](f3.jpg)\n**Figure 3.**",
		},
		{
			name:   "none policy keeps caption only",
			opts:   Options{ImagePolicy: types.ImageNone},
			figure: types.Figure{Label: "Figure 4", Caption: "Map.", ImageURL: "f4.jpg"},
			want:   "**Figure 4.** Map. *(image not available)*",
		},
		{
			name:   "missing image",
			figure: types.Figure{Label: "Figure 5", Caption: "Lost."},
			want:   "**Figure 5.** Lost. *(image not available)*",
		},
		{
			name:   "rewriter applied",
			opts:   Options{RewriteImage: func(s string) string { return "images/" + s[strings.LastIndex(s, "/")+1:] }},
			figure: types.Figure{Label: "Figure 6", ImageURL: "/a/b/f6.jpg"},
			want:   "![Figure 6](images/f6.jpg)\n**Figure 6.**",
		},
		{
			name:   "zoom link",
			figure: types.Figure{Label: "Figure 7", ImageURL: "https://x.org/f.jpg", ZoomURL: "https://x.org/zoom"},
			want:   "![Figure 7](https://x.org/f.jpg)\n**Figure 7.**\n[View larger image](https://x.org/zoom)",
		},
		{
			name:   "scanned page without label",
			figure: types.Figure{ImageURL: "https://x.org/p1.gif", Alt: "Page 1"},
			want:   "![Page 1](https://x.org/p1.gif)",
		},
		{
			name:   "none policy without label keeps alt",
			opts:   Options{ImagePolicy: types.ImageNone},
			figure: types.Figure{ImageURL: "f.png", Alt: "Page 1"},
			want:   "Page 1 *(image not available)*",
		},
		{
			name:   "none policy without label or alt",
			opts:   Options{ImagePolicy: types.ImageNone},
			figure: types.Figure{ImageURL: "f.png"},
			want:   "*(image not available)*",
		},
		{
			name:   "rewriter dropping the image",
			opts:   Options{RewriteImage: func(string) string { return "" }},
			figure: types.Figure{Label: "Figure 8", Caption: "Gone.", ImageURL: "f8.jpg", ZoomURL: "https://x.org/zoom"},
			want:   "**Figure 8.** Gone. *(image not available)*",
		},
		{
			name: "cited caption",
			figure: types.Figure{
				Label:          "Figure 9",
				Caption:        "Data from 2.",
				ImageURL:       "https://x.org/f9.jpg",
				CaptionInlines: []types.Inline{text("Data from "), {Kind: types.InlineCitation, Keys: []string{"B2"}}, text(".")},
			},
			want: "![Figure 9](https://x.org/f9.jpg)\n**Figure 9.** Data from [[2]](#ref-2).",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cites := fakeCitations{"B2": {Index: 2, Key: "B2"}}
			assert.Equal(t, tt.want, NewContext(cites, tt.opts).Figure(tt.figure))
		})
	}
}

func TestEquation(t *testing.T) {
	ctx := NewContext(nil, Options{})

	assert.Equal(t, "*Equation 1*\n\n$$\nE = mc^2\n$$",
		ctx.Equation(types.Equation{Payload: "E = mc^2", Notation: types.NotationTeX, Label: "(1)", Display: true}))
	assert.Equal(t, "```mathml\n<math><mi>x</mi></math>\n```",
		ctx.Equation(types.Equation{Payload: "<math><mi>x</mi></math>", Notation: types.NotationMathML, Display: true}))
	assert.Equal(t, `$\alpha$`,
		ctx.Equation(types.Equation{Payload: `\alpha`, Notation: types.NotationTeX}))
}

func TestList(t *testing.T) {
	l := types.List{Ordered: true, Items: []types.ListItem{
		{Inlines: []types.Inline{text("one")}, Children: []types.List{{Items: []types.ListItem{
			{Inlines: []types.Inline{text("inner")}},
		}}}},
		{Inlines: []types.Inline{text("two")}},
	}}

	assert.Equal(t, "1. one\n   - inner\n2. two", NewContext(nil, Options{}).List(l))
}

func TestParagraph_Inlines(t *testing.T) {
	p := types.Paragraph{Inlines: []types.Inline{
		text("We used "),
		{Kind: types.InlineEmphasis, Children: []types.Inline{text("E. coli ")}},
		text("and "),
		{Kind: types.InlineStrong, Children: []types.Inline{text("bold")}},
		text(" H"),
		{Kind: types.InlineSubscript, Children: []types.Inline{text("2")}},
		text("O x"),
		{Kind: types.InlineSuperscript, Children: []types.Inline{text("2")}},
		text(", "),
		{Kind: types.InlineLink, Href: "https://example.org", Children: []types.Inline{text("site")}},
		text(" "),
		{Kind: types.InlineCode, Text: "grep"},
	}}

	assert.Equal(t, "We used *E. coli* and **bold** H~2~O x^2^, [site](https://example.org) `grep`",
		NewContext(nil, Options{}).Paragraph(p))
}

func TestCitation(t *testing.T) {
	cites := fakeCitations{
		"B1":  {Index: 1, Key: "B1"},
		"B2":  {Index: 2, Key: "B2"},
		"B99": {Index: 3, Key: "B99", Unresolved: true},
	}
	ctx := NewContext(cites, Options{})

	assert.Equal(t, "[[1]](#ref-1)", ctx.Citation([]string{"B1"}))
	assert.Equal(t, "[[1]](#ref-1), [[2]](#ref-2)", ctx.Citation([]string{"B1", "B2"}))
	assert.Equal(t, "[[3?]](#ref-3)", ctx.Citation([]string{"B99"}))
	assert.Equal(t, "[unresolved citation: X]", ctx.Citation([]string{"X"}))
}

func TestBlock_Unknown(t *testing.T) {
	assert.Equal(t, "plain text", NewContext(nil, Options{}).Block(types.Block{Kind: types.BlockUnknown, Text: " plain text "}))
}
