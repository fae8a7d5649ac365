// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize parses article HTML into a cleaned tree that the
// extraction stages walk. It removes page chrome (scripts, navigation,
// banners, ads), collapses whitespace inside text nodes, and applies NFC
// normalization, while keeping the attributes later stages depend on
// (src, href, id, colspan, rowspan) and heading levels untouched.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is a normalized article document.
type Tree struct {
	// Doc is the whole document, head included.
	Doc *goquery.Document

	// Content is the element holding the article body: the first match of
	// section.main-article-body, article, main, [role=main], falling back
	// to body.
	Content *goquery.Selection

	ids map[string]bool
}

// HasID reports whether any element in the document carries id (or an
// anchor carries it as name).
func (t *Tree) HasID(id string) bool {
	return t.ids[id]
}

// Head returns the document head.
func (t *Tree) Head() *goquery.Selection {
	return t.Doc.Find("head")
}

// contentMatchers lists content-root candidates in priority order.
var contentMatchers = []cascadia.Selector{
	cascadia.MustCompile("section.main-article-body"),
	cascadia.MustCompile("article"),
	cascadia.MustCompile("main"),
	cascadia.MustCompile("[role=main]"),
	cascadia.MustCompile("body"),
}

// tagRe matches the start of any markup construct.
var tagRe = regexp.MustCompile(`<[!?/]?[A-Za-z]`)

// Parse validates and parses src, returning the normalized tree. It fails
// with a *MalformedInputError only when src cannot be treated as HTML at
// all; every structural irregularity past that point is tolerated.
func Parse(src string) (*Tree, error) {
	if err := validate(src); err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, &MalformedInputError{Reason: err.Error()}
	}

	doc := goquery.NewDocumentFromNode(root)
	preserveTeX(doc)
	stripNoise(doc)
	normalizeText(root, false)

	t := &Tree{Doc: doc, ids: collectIDs(doc)}
	for _, m := range contentMatchers {
		if sel := doc.FindMatcher(m).First(); sel.Length() > 0 {
			t.Content = sel
			break
		}
	}
	if t.Content == nil {
		// html.Parse always synthesizes a body; keep a non-nil selection anyway.
		t.Content = doc.Selection
	}
	return t, nil
}

func validate(src string) error {
	switch {
	case strings.TrimSpace(src) == "":
		return &MalformedInputError{Reason: "empty input"}
	case !utf8.ValidString(src):
		return &MalformedInputError{Reason: "input is not valid UTF-8"}
	case strings.ContainsRune(src, 0):
		return &MalformedInputError{Reason: "input contains NUL bytes"}
	case !tagRe.MatchString(src):
		return &MalformedInputError{Reason: "no markup found"}
	}
	return nil
}

// preserveTeX turns MathJax script payloads into spans before scripts are
// stripped, so display and inline TeX survive normalization.
func preserveTeX(doc *goquery.Document) {
	doc.Find(`script[type^="math/tex"]`).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if n.Parent == nil {
			return
		}
		span := &html.Node{
			Type:     html.ElementNode,
			Data:     "span",
			DataAtom: atom.Span,
			Attr:     []html.Attribute{{Key: "class", Val: TeXClass}},
		}
		if typ, _ := s.Attr("type"); strings.Contains(typ, "mode=display") {
			span.Attr = append(span.Attr, html.Attribute{Key: "data-display", Val: "true"})
		}
		span.AppendChild(&html.Node{Type: html.TextNode, Data: s.Text()})
		n.Parent.InsertBefore(span, n)
		n.Parent.RemoveChild(n)
	})
}

// TeXClass marks spans created from MathJax TeX scripts.
const TeXClass = "tex-math"

const noiseSelector = "script, style, noscript, template, iframe, object, embed, " +
	"form, button, input, select, textarea, svg, canvas, nav, aside, " +
	"[role=navigation], [role=banner], [role=contentinfo]"

// noiseTokenRe matches a single class or id token naming page chrome.
var noiseTokenRe = regexp.MustCompile(`(?i)^(?:nav|navbar|navigation|topnav|sidenav|pmc-sidenav|menu|` +
	`breadcrumbs?|sidebar|widget|banner|usa-banner|masthead|site-header|page-header|` +
	`site-footer|page-footer|usa-skipnav|skip-?link|skipnav|advert\w*|ads?|ad-\w+|` +
	`cookie-\w+|social-\w+|share-\w+|ncbi-header|ncbi-footer|pmc-header|pmc-footer)$`)

func stripNoise(doc *goquery.Document) {
	doc.Find(noiseSelector).Remove()

	// Site header and footer are chrome; an article's own header is not.
	doc.Find("header, footer").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("article").Length() == 0 {
			s.Remove()
		}
	})

	doc.Find("body [class], body [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isNoise(s.Get(0))
	}).Remove()
}

func isNoise(n *html.Node) bool {
	if id := Attr(n, "id"); id != "" && noiseTokenRe.MatchString(id) {
		return true
	}
	for _, c := range Classes(n) {
		if noiseTokenRe.MatchString(c) {
			return true
		}
	}
	return false
}

// normalizeText rewrites text nodes in place. Text beneath pre, code, math
// or TeX spans keeps its whitespace.
func normalizeText(n *html.Node, verbatim bool) {
	if n.Type == html.ElementNode && preservesWhitespace(n) {
		verbatim = true
	}
	if n.Type == html.TextNode {
		if verbatim {
			n.Data = stripInvisible(nfc(n.Data))
		} else {
			n.Data = collapseSpace(stripInvisible(nfc(n.Data)))
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		normalizeText(c, verbatim)
	}
}

func preservesWhitespace(n *html.Node) bool {
	switch n.Data {
	case "pre", "code", "math", "annotation", "textarea":
		return true
	}
	return HasClass(n, TeXClass)
}

func collectIDs(doc *goquery.Document) map[string]bool {
	ids := make(map[string]bool)
	doc.Find("[id], a[name]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok && id != "" {
			ids[id] = true
		}
		if name, ok := s.Attr("name"); ok && name != "" && goquery.NodeName(s) == "a" {
			ids[name] = true
		}
	})
	return ids
}
