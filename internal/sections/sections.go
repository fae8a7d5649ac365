// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sections builds the article section hierarchy and its content
// blocks in a single depth-first pass over the normalized tree.
//
// Headings open sections. A heading closes every open section of the same
// or deeper level and nests under the nearest shallower one, so skipped
// levels (h2 followed by h4) never fail. Content between headings becomes
// blocks of the enclosing section; content before the first heading goes to
// an untitled Level 0 section.
package sections

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// Options configures extraction.
type Options struct {
	// Title is the article title. A level-1 heading with this text is the
	// document title, not a section.
	Title string

	// References holds bibliography keys and aliases. Internal anchors that
	// target one of them become citations.
	References map[string]bool
}

// ScannedNote introduces articles that PMC only has as page images.
const ScannedNote = "Note: This is a scanned document with limited structured text. Full content available in PDF."

// ScannedTitle heads the page-image section of a scanned article.
const ScannedTitle = "Full Text (Scanned Pages)"

var referencesTitle = regexp.MustCompile(`(?i)^(references?|bibliography|literature cited|works cited)$`)

// Extract returns the abstract section(s) followed by the body sections of t.
func Extract(t *normalize.Tree, opts Options) ([]types.Section, types.Warnings) {
	in := &inliner{tree: t, refs: opts.References}

	var (
		out      []types.Section
		warnings types.Warnings
	)

	abstracts := findAbstracts(t)
	for i, s := range abstracts {
		sec, w := extractAbstract(in, s, i)
		out = append(out, sec)
		warnings = append(warnings, w...)
	}

	if isScanned(t) {
		out = append(out, scannedSections(t)...)
		return out, warnings
	}

	e := newExtractor(in)
	e.title = normalize.CleanText(opts.Title)
	e.walkChildren(t.Content.Get(0))
	e.flush()
	out = append(out, e.sections()...)
	return out, append(warnings, e.warnings...)
}

// node is a mutable section under construction.
type node struct {
	sec      types.Section
	children []*node
}

func (n *node) freeze() types.Section {
	s := n.sec
	for _, c := range n.children {
		if c.empty() && referencesTitle.MatchString(c.sec.Title) {
			continue
		}
		s.Subsections = append(s.Subsections, c.freeze())
	}
	return s
}

func (n *node) empty() bool {
	return len(n.sec.Blocks) == 0 && len(n.children) == 0
}

type extractor struct {
	in       *inliner
	root     *node
	stack    []*node
	run      []*html.Node
	warnings types.Warnings

	title     string
	seenTitle bool

	// abstract mode turns sub-headings into bold paragraph labels.
	abstract      bool
	abstractTitle string
	label         string
}

func newExtractor(in *inliner) *extractor {
	return &extractor{in: in, root: &node{}}
}

func (e *extractor) current() *node {
	if len(e.stack) == 0 {
		return e.root
	}
	return e.stack[len(e.stack)-1]
}

func (e *extractor) sections() []types.Section {
	var out []types.Section
	if len(e.root.sec.Blocks) > 0 {
		out = append(out, types.Section{Blocks: e.root.sec.Blocks})
	}
	for _, c := range e.root.children {
		if c.empty() && referencesTitle.MatchString(c.sec.Title) {
			continue
		}
		out = append(out, c.freeze())
	}
	return out
}

func (e *extractor) add(b types.Block) {
	if e.label != "" {
		label := e.label
		e.label = ""
		if b.Kind == types.BlockParagraph {
			b.Paragraph.Inlines = append(labelInlines(label), b.Paragraph.Inlines...)
		} else {
			e.add(types.Block{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{Inlines: labelInlines(label)}})
		}
	}
	cur := e.current()
	cur.sec.Blocks = append(cur.sec.Blocks, b)
}

func labelInlines(label string) []types.Inline {
	return []types.Inline{
		{Kind: types.InlineStrong, Children: []types.Inline{{Kind: types.InlineText, Text: label + ":"}}},
		{Kind: types.InlineText, Text: " "},
	}
}

func (e *extractor) warn(format string, args ...any) {
	e.warnings = append(e.warnings, types.DataQuality(e.current().sec.Title, format, args...))
}

// flush turns the pending inline run into a paragraph, or a citation block
// when the run holds nothing but citation markers.
func (e *extractor) flush() {
	if len(e.run) == 0 {
		return
	}
	inlines := e.in.inlines(e.run)
	e.run = e.run[:0]
	if len(inlines) == 0 {
		return
	}
	if onlyCitations(inlines) {
		e.add(types.Block{Kind: types.BlockCitation, Citation: citationMarker(inlines)})
		return
	}
	e.add(types.Block{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{Inlines: inlines}})
}

func (e *extractor) walkChildren(n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.visit(c)
	}
}

func (e *extractor) visit(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		e.run = append(e.run, n)
		return
	case html.ElementNode:
	default:
		return
	}

	if isInline(n) {
		e.run = append(e.run, n)
		return
	}

	e.flush()
	if level := normalize.HeadingLevel(n); level > 0 {
		e.heading(n, level)
		return
	}
	if e.excluded(n) {
		return
	}

	switch {
	case isTableWrap(n):
		e.add(e.table(n))
	case isFigure(n):
		e.add(e.figure(n))
	case isDisplayEquation(n):
		e.add(e.equation(n))
	case normalize.IsElement(n, "ul", "ol"):
		if l := e.in.list(n); len(l.Items) > 0 {
			e.add(types.Block{Kind: types.BlockList, List: l})
		}
	case normalize.IsElement(n, "img"):
		e.add(e.image(n))
	case normalize.IsElement(n, "pre", "blockquote", "dl", "address", "details", "video", "audio", "object"):
		if text := normalize.NodeText(n); text != "" {
			e.add(types.Block{Kind: types.BlockUnknown, Text: text})
		}
	case normalize.IsElement(n, "hr", "br", "head", "title", "meta", "link"):
	default:
		e.walkChildren(n)
		e.flush()
	}
}

func (e *extractor) excluded(n *html.Node) bool {
	if normalize.IsElement(n, "ul", "ol", "section") && normalize.HasClass(n, "references") {
		return true
	}
	for _, c := range []string{"ref-list", "kwd-group", "abstract"} {
		if normalize.HasClass(n, c) {
			return true
		}
	}
	return false
}

func (e *extractor) heading(n *html.Node, level int) {
	title := normalize.NodeText(n)
	if title == "" {
		return
	}

	if level == 1 && !e.seenTitle && (normalize.HasClass(n, "content-title") || strings.EqualFold(title, e.title)) {
		e.seenTitle = true
		return
	}

	if e.abstract {
		if strings.EqualFold(title, e.abstractTitle) || strings.EqualFold(title, "abstract") {
			return
		}
		if e.label != "" {
			e.add(types.Block{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{}})
		}
		e.label = strings.TrimRight(title, ": ")
		return
	}

	for len(e.stack) > 0 && e.current().sec.Level >= level {
		e.stack = e.stack[:len(e.stack)-1]
	}
	parent := e.current()
	child := &node{sec: types.Section{Level: level, Title: title, ID: headingID(n)}}
	parent.children = append(parent.children, child)
	e.stack = append(e.stack, child)
}

// headingID prefers the heading's own id, then the id of a section the
// heading opens.
func headingID(n *html.Node) string {
	if id := normalize.Attr(n, "id"); id != "" {
		return id
	}
	p := n.Parent
	if p == nil || !normalize.IsElement(p, "section", "div") {
		return ""
	}
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if c == n {
				return normalize.Attr(p, "id")
			}
			return ""
		}
	}
	return ""
}

// findAbstracts returns every abstract container in document order.
func findAbstracts(t *normalize.Tree) []*goquery.Selection {
	var out []*goquery.Selection
	t.Doc.Find("section.abstract, div.abstract").Each(func(_ int, s *goquery.Selection) {
		// Nested abstract containers belong to their outer abstract.
		if s.ParentsFiltered(".abstract").Length() > 0 {
			return
		}
		out = append(out, s)
	})
	return out
}

func extractAbstract(in *inliner, s *goquery.Selection, i int) (types.Section, types.Warnings) {
	title := "Abstract"
	if i > 0 {
		if h := normalize.Text(s.Find("h1, h2, h3, h4, h5, h6").First()); h != "" {
			title = h
		}
	}

	e := newExtractor(in)
	e.abstract = true
	e.abstractTitle = title
	e.seenTitle = true
	e.walkChildren(s.Get(0))
	e.flush()
	if e.label != "" {
		e.add(types.Block{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{}})
	}

	id, _ := s.Attr("id")
	return types.Section{Level: 2, Title: title, ID: id, Blocks: e.root.sec.Blocks}, e.warnings
}
