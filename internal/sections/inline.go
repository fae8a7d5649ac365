// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sections

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// inlineTags are elements that never start a block.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "br": true, "cite": true,
	"code": true, "dfn": true, "em": true, "font": true, "i": true, "kbd": true,
	"mark": true, "math": true, "q": true, "s": true, "samp": true, "small": true,
	"span": true, "strong": true, "sub": true, "sup": true, "time": true, "tt": true,
	"u": true, "var": true, "wbr": true, "label": true,
}

// refKeyRe matches ids PMC uses for reference list items (B1, R12, CR3, ref5).
var refKeyRe = regexp.MustCompile(`(?i)^(?:b|r|cr|c|ref|bib|bibr|cit|cite)[-_]?\d+[a-z]?$`)

// separatorRe matches text that may sit between grouped citation markers.
var separatorRe = regexp.MustCompile(`^[\s,;:\-–—()\[\]]*$`)

func isInline(n *html.Node) bool {
	if !inlineTags[n.Data] {
		return false
	}
	if isDisplayEquation(n) || isFigure(n) || isTableWrap(n) {
		return false
	}
	return !hasBlockDescendant(n)
}

func hasBlockDescendant(n *html.Node) bool {
	if n.Data == "math" {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data == "math" || c.Data == "img" {
			continue
		}
		if !inlineTags[c.Data] || hasBlockDescendant(c) {
			return true
		}
	}
	return false
}

// inliner converts inline HTML into types.Inline values.
type inliner struct {
	tree *normalize.Tree
	refs map[string]bool
}

// inlines converts a run of sibling nodes, merging adjacent text and
// trimming whitespace at both ends.
func (in *inliner) inlines(nodes []*html.Node) []types.Inline {
	var out []types.Inline
	for _, n := range nodes {
		out = append(out, in.inline(n)...)
	}
	return trim(merge(out))
}

func (in *inliner) children(n *html.Node) []types.Inline {
	var out []types.Inline
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, in.inline(c)...)
	}
	return merge(out)
}

func (in *inliner) inline(n *html.Node) []types.Inline {
	switch n.Type {
	case html.TextNode:
		if n.Data == "" {
			return nil
		}
		return []types.Inline{{Kind: types.InlineText, Text: n.Data}}
	case html.ElementNode:
	default:
		return nil
	}

	switch n.Data {
	case "br", "wbr":
		return []types.Inline{{Kind: types.InlineText, Text: " "}}
	case "em", "i", "cite", "dfn", "var":
		return wrap(types.InlineEmphasis, in.children(n))
	case "strong", "b":
		return wrap(types.InlineStrong, in.children(n))
	case "sub":
		return wrap(types.InlineSubscript, in.children(n))
	case "sup":
		kids := in.children(n)
		if onlyCitations(kids) {
			return kids
		}
		return wrap(types.InlineSuperscript, kids)
	case "code", "tt", "kbd", "samp":
		text := normalize.CleanText(textContent(n))
		if text == "" {
			return nil
		}
		return []types.Inline{{Kind: types.InlineCode, Text: text}}
	case "a":
		return in.anchor(n)
	case "math":
		return []types.Inline{{Kind: types.InlineEquation, Equation: equationFrom(n, false)}}
	case "img":
		if alt := normalize.CleanText(normalize.Attr(n, "alt")); alt != "" {
			return []types.Inline{{Kind: types.InlineText, Text: alt}}
		}
		return nil
	case "span":
		if normalize.HasClass(n, normalize.TeXClass) || normalize.HasClass(n, "inline-formula") {
			if eq := equationFrom(n, false); eq.Payload != "" {
				return []types.Inline{{Kind: types.InlineEquation, Equation: eq}}
			}
		}
	}
	return in.children(n)
}

func (in *inliner) anchor(n *html.Node) []types.Inline {
	href := strings.TrimSpace(normalize.Attr(n, "href"))
	if keys := in.citationKeys(n, href); len(keys) > 0 {
		return []types.Inline{{Kind: types.InlineCitation, Keys: keys, Text: normalize.NodeText(n)}}
	}

	kids := in.children(n)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return kids
	}
	if blank(kids) {
		kids = []types.Inline{{Kind: types.InlineText, Text: href}}
	}
	return []types.Inline{{Kind: types.InlineLink, Href: href, Children: kids}}
}

// citationKeys classifies an internal anchor. It is a citation when it
// targets a bibliography key, carries a bibliographic cross-reference
// marker, or dangles (targets no element) with a reference-style key.
func (in *inliner) citationKeys(n *html.Node, href string) []string {
	if !strings.HasPrefix(href, "#") {
		return nil
	}
	key := strings.TrimPrefix(href, "#")
	if key == "" {
		return nil
	}

	marked := normalize.Attr(n, "ref-type") == "bibr" ||
		normalize.Attr(n, "data-ref-type") == "bibr" ||
		normalize.HasClass(n, "bibr") || normalize.HasClass(n, "xref-bibr")

	if !in.refs[key] && !marked && (in.tree.HasID(key) || !refKeyRe.MatchString(key)) {
		return nil
	}

	// rid may name several references for one marker.
	if rid := strings.Fields(normalize.Attr(n, "rid")); len(rid) > 1 {
		return rid
	}
	return []string{key}
}

func wrap(kind types.InlineKind, kids []types.Inline) []types.Inline {
	if blank(kids) {
		return kids
	}
	return []types.Inline{{Kind: kind, Children: kids}}
}

// blank reports whether a run holds only whitespace text.
func blank(in []types.Inline) bool {
	for _, il := range in {
		if il.Kind != types.InlineText || strings.TrimSpace(il.Text) != "" {
			return false
		}
	}
	return true
}

// merge joins adjacent text inlines.
func merge(in []types.Inline) []types.Inline {
	var out []types.Inline
	for _, il := range in {
		if il.Kind == types.InlineText && len(out) > 0 && out[len(out)-1].Kind == types.InlineText {
			out[len(out)-1].Text += il.Text
			continue
		}
		out = append(out, il)
	}
	for i := range out {
		if out[i].Kind == types.InlineText {
			out[i].Text = collapse(out[i].Text)
		}
	}
	return out
}

func collapse(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

// trim removes leading and trailing whitespace-only text from a run.
func trim(in []types.Inline) []types.Inline {
	for len(in) > 0 && in[0].Kind == types.InlineText {
		in[0].Text = strings.TrimLeft(in[0].Text, " ")
		if in[0].Text != "" {
			break
		}
		in = in[1:]
	}
	for len(in) > 0 && in[len(in)-1].Kind == types.InlineText {
		last := &in[len(in)-1]
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		in = in[:len(in)-1]
	}
	return in
}

// onlyCitations reports whether a run holds at least one citation and
// nothing else but separators.
func onlyCitations(in []types.Inline) bool {
	found := false
	for _, il := range in {
		switch {
		case il.Kind == types.InlineCitation:
			found = true
		case il.Kind == types.InlineText && separatorRe.MatchString(il.Text):
		default:
			return false
		}
	}
	return found
}

func citationMarker(in []types.Inline) *types.CitationMarker {
	m := &types.CitationMarker{}
	var text []string
	for _, il := range in {
		if il.Kind == types.InlineCitation {
			m.Keys = append(m.Keys, il.Keys...)
			text = append(text, il.Text)
		}
	}
	m.Text = strings.Join(text, ", ")
	return m
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// cited converts the children of sel into an inline run, or returns nil
// when the run holds no citation and plain text serves.
func (in *inliner) cited(sel *goquery.Selection) []types.Inline {
	if sel.Length() == 0 {
		return nil
	}
	return in.citedNode(sel.Get(0))
}

func (in *inliner) citedNode(n *html.Node) []types.Inline {
	run := trim(in.children(n))
	if !hasCitation(run) {
		return nil
	}
	return run
}

func hasCitation(in []types.Inline) bool {
	for _, il := range in {
		if il.Kind == types.InlineCitation || hasCitation(il.Children) {
			return true
		}
	}
	return false
}

// plainText flattens a run to its source text.
func plainText(in []types.Inline) string {
	var b strings.Builder
	for _, il := range in {
		b.WriteString(il.Text)
		b.WriteString(plainText(il.Children))
	}
	return b.String()
}

// stripLabel drops a leading caption label, written either as text or as
// a strong run, along with the punctuation after it.
func stripLabel(run []types.Inline, label string) []types.Inline {
	if label == "" || len(run) == 0 {
		return run
	}
	out := append([]types.Inline(nil), run...)
	first := out[0]
	switch {
	case first.Kind == types.InlineText && strings.HasPrefix(first.Text, label):
		out[0].Text = strings.TrimPrefix(first.Text, label)
	case first.Kind != types.InlineCitation && strings.TrimRight(strings.TrimSpace(plainText([]types.Inline{first})), ".:|") == label:
		out = out[1:]
	default:
		return run
	}
	if len(out) > 0 && out[0].Kind == types.InlineText {
		out[0].Text = strings.TrimLeft(out[0].Text, ".:| ")
		if out[0].Text == "" {
			out = out[1:]
		}
	}
	return out
}

// prefixText puts plain text ahead of a run.
func prefixText(text string, run []types.Inline) []types.Inline {
	if text = strings.TrimSpace(text); text == "" {
		return run
	}
	return merge(append([]types.Inline{{Kind: types.InlineText, Text: text + " "}}, run...))
}
