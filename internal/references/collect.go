// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package references collects the article reference list, numbers entries
// by first citation, and renders the bibliography.
//
// Numbering is two-pass. Collect builds a Catalog in source order; a
// Resolver then sees citation keys in document order and hands out numbers
// on first sight, registering placeholders for keys the catalog does not
// know; Finalize appends the entries nobody cited.
package references

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// Catalog is the source reference list in source order.
type Catalog struct {
	entries []types.BibliographyEntry
	byKey   map[string]int
}

// Len returns the number of collected entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of the collected entries. Index is unset.
func (c *Catalog) Entries() []types.BibliographyEntry {
	return append([]types.BibliographyEntry(nil), c.entries...)
}

// Keys returns every key and alias an anchor may target.
func (c *Catalog) Keys() map[string]bool {
	keys := make(map[string]bool, len(c.byKey))
	for k := range c.byKey {
		keys[k] = true
	}
	return keys
}

func (c *Catalog) lookup(key string) (int, bool) {
	i, ok := c.byKey[key]
	return i, ok
}

func (c *Catalog) add(e types.BibliographyEntry) {
	pos := len(c.entries)
	c.entries = append(c.entries, e)
	for _, k := range append([]string{e.Key}, e.Aliases...) {
		if _, dup := c.byKey[k]; !dup {
			c.byKey[k] = pos
		}
	}
}

var (
	listMatcher = cascadia.MustCompile(".ref-list, ol.references, ul.references, section.references")
	citeMatcher = cascadia.MustCompile("cite, .element-citation, .mixed-citation")
	linkMatcher = cascadia.MustCompile("a[href]")
)

// Collect reads every reference list in the document. Items without any id
// get a synthetic key and a data-quality warning.
func Collect(t *normalize.Tree) (*Catalog, types.Warnings) {
	c := &Catalog{byKey: make(map[string]int)}
	var warnings types.Warnings

	for _, item := range items(t) {
		e := entry(item)
		if e.Text == "" && len(e.Links) == 0 {
			continue
		}
		if e.Key == "" {
			e.Key = fmt.Sprintf("ref-%d", c.Len()+1)
			warnings = append(warnings, types.DataQuality("References",
				"reference %d has no id; assigned key %s", c.Len()+1, e.Key))
		}
		c.add(e)
	}
	return c, warnings
}

// items returns reference list entries in source order. A list holds li
// items; older layouts hold one element with an id per reference.
func items(t *normalize.Tree) []*html.Node {
	var out []*html.Node
	for _, list := range outermost(cascadia.QueryAll(t.Doc.Get(0), listMatcher)) {
		lis := ownItems(list)
		if len(lis) == 0 {
			lis = idChildren(list)
		}
		out = append(out, lis...)
	}
	return out
}

func outermost(nodes []*html.Node) []*html.Node {
	in := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		in[n] = true
	}
	var out []*html.Node
	for _, n := range nodes {
		nested := false
		for p := n.Parent; p != nil; p = p.Parent {
			if in[p] {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, n)
		}
	}
	return out
}

// ownItems returns li elements under list that are not nested inside
// another li.
func ownItems(list *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if normalize.IsElement(c, "li") {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(list)
	return out
}

func idChildren(list *html.Node) []*html.Node {
	var out []*html.Node
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || normalize.HeadingLevel(c) > 0 {
			continue
		}
		if normalize.Attr(c, "id") != "" {
			out = append(out, c)
		}
	}
	return out
}

var (
	numberPrefixRe = regexp.MustCompile(`^(?:\[\d{1,4}\]|\d{1,4}\.)\s*`)
	emptyBracketRe = regexp.MustCompile(`\[\s*[,;|]?\s*\]|\(\s*\)`)
	doiRe          = regexp.MustCompile(`\b10\.\d{4,9}/\S+`)
)

func entry(item *html.Node) types.BibliographyEntry {
	var e types.BibliographyEntry

	ids := elementIDs(item)
	if len(ids) > 0 {
		e.Key, e.Aliases = ids[0], ids[1:]
	}

	e.Text = citationText(item)
	for _, a := range cascadia.QueryAll(item, linkMatcher) {
		addLink(&e, a)
	}
	if e.DOI == "" {
		if m := doiRe.FindString(e.Text); m != "" {
			e.DOI = strings.TrimRight(m, ".,;)")
		}
	}
	if e.DOI != "" && e.DOIURL == "" {
		e.DOIURL = "https://doi.org/" + e.DOI
	}

	parseFields(&e)
	return e
}

// elementIDs returns the item id followed by descendant ids and anchor
// names in document order.
func elementIDs(item *html.Node) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			add(normalize.Attr(n, "id"))
			if n.Data == "a" {
				add(normalize.Attr(n, "name"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(item)
	return ids
}

// citationText prefers the cite element. Without one it takes the item
// text minus link anchors and the printed label.
func citationText(item *html.Node) string {
	if cites := cascadia.QueryAll(item, citeMatcher); len(cites) > 0 {
		var parts []string
		for _, c := range outermost(cites) {
			if s := normalize.NodeText(c); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return numberPrefixRe.ReplaceAllString(strings.Join(parts, " "), "")
		}
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			return
		case n.Type != html.ElementNode && n.Type != html.DocumentNode:
			return
		case n != item && (n.Data == "a" || normalize.HasClass(n, "label")):
			b.WriteString(" ")
			return
		case n.Data == "br" || n.Data == "div" || n.Data == "p":
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(item)

	s := normalize.CleanText(b.String())
	for {
		stripped := normalize.CleanText(emptyBracketRe.ReplaceAllString(s, ""))
		if stripped == s {
			break
		}
		s = stripped
	}
	return numberPrefixRe.ReplaceAllString(s, "")
}

// addLink classifies one anchor into the DOI, PMC, or PubMed slot. Other
// external links are kept as generic links; search-engine links are
// dropped.
func addLink(e *types.BibliographyEntry, a *html.Node) {
	href := strings.TrimSpace(normalize.Attr(a, "href"))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return
	}
	label := normalize.NodeText(a)
	lower := strings.ToLower(href)
	upper := strings.ToUpper(label)

	switch {
	case strings.Contains(lower, "doi.org/") || upper == "DOI":
		if e.DOIURL == "" {
			e.DOIURL = href
			if i := strings.Index(lower, "doi.org/"); i >= 0 {
				e.DOI = href[i+len("doi.org/"):]
			}
		}
	case strings.Contains(lower, "/pmc/") || strings.Contains(lower, "pmc.ncbi.nlm.nih.gov") ||
		upper == "PMC" || strings.HasPrefix(upper, "PMC FREE"):
		if e.PMCURL == "" {
			e.PMCURL = href
		}
	case strings.Contains(lower, "pubmed.ncbi.nlm.nih.gov") || strings.Contains(lower, "/pubmed/") || upper == "PUBMED":
		if e.PubMedURL == "" {
			e.PubMedURL = href
		}
	case strings.Contains(lower, "scholar.google."):
	default:
		if label == "" {
			label = href
		}
		e.Links = append(e.Links, types.Link{Label: label, URL: href})
	}
}
