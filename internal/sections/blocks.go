// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sections

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// maxSpan caps colspan and rowspan values taken from the source.
const maxSpan = 1000

// labelRe splits "Figure 2. Caption" or "Table S1: Caption" into label and rest.
var labelRe = regexp.MustCompile(`^((?:Figure|Fig\.?|Table|Scheme|Chart|Plate|Box)\s*S?\d+[A-Za-z]?)\s*[.:|]?\s*(.*)$`)

func isTableWrap(n *html.Node) bool {
	return normalize.IsElement(n, "table") || normalize.HasClass(n, "tw") || normalize.HasClass(n, "table-wrap")
}

func isFigure(n *html.Node) bool {
	return normalize.IsElement(n, "figure") || normalize.HasClass(n, "fig")
}

func isDisplayEquation(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch {
	case normalize.HasClass(n, "disp-formula"), normalize.HasClass(n, "display-formula"):
		return true
	case n.Data == "math" && normalize.Attr(n, "display") == "block":
		return true
	case normalize.HasClass(n, normalize.TeXClass) && normalize.Attr(n, "data-display") == "true":
		return true
	}
	return false
}

// splitLabel separates a leading "Figure N"/"Table N" label from a title.
func splitLabel(s string) (label, rest string) {
	if m := labelRe.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return "", s
}

func joinText(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// table builds a table block from a table element or a PMC table wrapper
// (section.tw). A wrapper holding only an image becomes a figure.
func (e *extractor) table(n *html.Node) types.Block {
	wrap := goquery.NewDocumentFromNode(n).Selection
	tbl := wrap
	if n.Data != "table" {
		tbl = wrap.Find("table").First()
	}

	title := normalize.Text(wrap.Find("h3.obj_head, h4.obj_head, .obj_head").First())
	capSel := wrap.Find("div.caption, caption").First()
	caption := normalize.Text(capSel)
	label, rest := splitLabel(title)
	capLabel := ""
	if title == "" {
		label, caption = splitLabel(caption)
		capLabel = label
	}
	t := &types.Table{
		Label:    strings.TrimRight(label, ".: "),
		Caption:  joinText(rest, caption),
		Footnote: normalize.Text(wrap.Find("div.tw-foot, .table-wrap-foot, .fn-group").First()),
	}
	if run := e.in.cited(capSel); run != nil {
		t.CaptionInlines = prefixText(rest, stripLabel(run, capLabel))
	}

	if tbl.Length() == 0 {
		if img := wrap.Find("img").First(); img.Length() > 0 {
			return e.figureBlock(&types.Figure{
				Label:          t.Label,
				Caption:        t.Caption,
				ImageURL:       imageSource(img.Get(0)),
				Alt:            normalize.CleanText(img.AttrOr("alt", "")),
				CaptionInlines: t.CaptionInlines,
			})
		}
		e.warn("table %q has no rows", joinText(t.Label, t.Caption))
		return types.Block{Kind: types.BlockUnknown, Text: joinText(t.Label, t.Caption, t.Footnote)}
	}

	t.Rows, t.Cells, t.HeaderRows = tableRows(tbl.Get(0), e.in.citedNode)
	if len(t.Rows) == 0 {
		e.warn("table %q has no rows", joinText(t.Label, t.Caption))
		return types.Block{Kind: types.BlockUnknown, Text: joinText(t.Label, t.Caption, normalize.NodeText(tbl.Get(0)), t.Footnote)}
	}
	return types.Block{Kind: types.BlockTable, Table: t}
}

// tableRows lays cells out on a grid. Colspan repeats the cell as empty
// cells to its right; rowspan reserves empty cells in the rows below. The
// number of tr elements is the number of rows. cited returns the inline run
// of a cell holding citations; cells is nil unless some cell has one.
func tableRows(table *html.Node, cited func(*html.Node) []types.Inline) (rows [][]string, cells [][][]types.Inline, headerRows int) {
	var carry []int
	headerDone := false
	anyCited := false

	for _, tr := range ownRows(table) {
		var (
			row  []string
			runs [][]types.Inline
		)
		push := func(text string, run []types.Inline) {
			row = append(row, text)
			runs = append(runs, run)
		}
		// reserved pads the columns still held by rowspans from above.
		reserved := func(col int) bool {
			if col < len(carry) && carry[col] > 0 {
				carry[col]--
				return true
			}
			return false
		}
		fill := func() {
			for reserved(len(row)) {
				push("", nil)
			}
		}

		allTH := true
		count := 0
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if !normalize.IsElement(c, "td", "th") {
				continue
			}
			count++
			if c.Data != "th" {
				allTH = false
			}
			fill()
			colspan := min(normalize.IntAttr(c, "colspan", 1), maxSpan)
			rowspan := min(normalize.IntAttr(c, "rowspan", 1), maxSpan)
			text := normalize.NodeText(c)
			var run []types.Inline
			if cited != nil {
				if run = cited(c); run != nil {
					anyCited = true
				}
			}
			for i := 0; i < colspan; i++ {
				col := len(row)
				if i == 0 {
					push(text, run)
				} else {
					push("", nil)
				}
				if rowspan > 1 {
					for len(carry) <= col {
						carry = append(carry, 0)
					}
					carry[col] = rowspan - 1
				}
			}
		}
		// A short row still consumes every rowspan reserved beyond its end.
		for last := lastReserved(carry); len(row) <= last; {
			reserved(len(row))
			push("", nil)
		}

		if !headerDone {
			if (inSection(tr, "thead") || (allTH && count > 0)) && !inSection(tr, "tbody") {
				headerRows++
			} else {
				headerDone = true
			}
		}
		rows = append(rows, row)
		cells = append(cells, runs)
	}
	if !anyCited {
		cells = nil
	}
	return rows, cells, headerRows
}

// lastReserved returns the highest column with a pending rowspan, or -1.
func lastReserved(carry []int) int {
	for i := len(carry) - 1; i >= 0; i-- {
		if carry[i] > 0 {
			return i
		}
	}
	return -1
}

func inSection(tr *html.Node, name string) bool {
	return tr.Parent != nil && tr.Parent.Data == name
}

// ownRows returns the tr elements of table in order, skipping rows of
// nested tables.
func ownRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case normalize.IsElement(c, "tr"):
				rows = append(rows, c)
			case normalize.IsElement(c, "thead", "tbody", "tfoot"):
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func (e *extractor) figure(n *html.Node) types.Block {
	s := goquery.NewDocumentFromNode(n).Selection

	title := normalize.Text(s.Find("h3.obj_head, h4.obj_head, .obj_head").First())
	capSel := s.Find("figcaption, div.caption").First()
	caption := normalize.Text(capSel)
	capLabel := ""
	if title == "" {
		if l := normalize.Text(capSel.Find(".label, span.fig-label").First()); l != "" {
			title = l
			caption = strings.TrimSpace(strings.TrimPrefix(caption, l))
		} else {
			title, caption = splitLabel(caption)
		}
		capLabel = title
	}
	label, rest := splitLabel(title)
	if label == "" {
		label, rest = title, ""
	}

	f := &types.Figure{
		Label:   strings.TrimRight(label, ".: "),
		Caption: joinText(rest, caption),
	}
	if run := e.in.cited(capSel); run != nil {
		f.CaptionInlines = prefixText(rest, stripLabel(run, capLabel))
	}
	if img := s.Find("img").First(); img.Length() > 0 {
		f.ImageURL = imageSource(img.Get(0))
		f.Alt = normalize.CleanText(img.AttrOr("alt", ""))
	}
	f.ZoomURL = strings.TrimSpace(s.Find("a.tileshop").First().AttrOr("href", ""))
	return e.figureBlock(f)
}

func (e *extractor) image(n *html.Node) types.Block {
	return e.figureBlock(&types.Figure{
		ImageURL: imageSource(n),
		Alt:      normalize.CleanText(normalize.Attr(n, "alt")),
	})
}

func (e *extractor) figureBlock(f *types.Figure) types.Block {
	if f.ImageURL == "" {
		e.warn("figure %q has no image", joinText(f.Label, f.Caption))
	}
	return types.Block{Kind: types.BlockFigure, Figure: f}
}

func imageSource(img *html.Node) string {
	for _, key := range []string{"src", "data-src", "data-original"} {
		if v := strings.TrimSpace(normalize.Attr(img, key)); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func (e *extractor) equation(n *html.Node) types.Block {
	eq := equationFrom(n, true)
	if eq.Payload == "" {
		// PMC renders some formulas as images only.
		if img := findElement(n, "img"); img != nil {
			return e.figureBlock(&types.Figure{
				Label:    eq.Label,
				ImageURL: imageSource(img),
				Alt:      normalize.CleanText(normalize.Attr(img, "alt")),
			})
		}
		e.warn("display formula without a payload")
		return types.Block{Kind: types.BlockUnknown, Text: normalize.NodeText(n)}
	}
	return types.Block{Kind: types.BlockEquation, Equation: eq}
}

// equationFrom extracts the formula payload of n, preferring TeX from an
// annotation, a MathJax span, or MathML alttext, then raw MathML.
func equationFrom(n *html.Node, display bool) *types.Equation {
	eq := &types.Equation{Display: display}
	if l := findClass(n, "label"); l != nil {
		eq.Label = normalize.NodeText(l)
	}

	switch {
	case normalize.HasClass(n, normalize.TeXClass):
		eq.Payload, eq.Notation = strings.TrimSpace(textContent(n)), types.NotationTeX
	case findAnnotation(n) != nil:
		eq.Payload, eq.Notation = strings.TrimSpace(textContent(findAnnotation(n))), types.NotationTeX
	case findClass(n, normalize.TeXClass) != nil:
		eq.Payload, eq.Notation = strings.TrimSpace(textContent(findClass(n, normalize.TeXClass))), types.NotationTeX
	default:
		m := n
		if n.Data != "math" {
			m = findElement(n, "math")
		}
		switch {
		case m == nil:
			if text := normalize.CleanText(strings.TrimSuffix(textContent(n), eq.Label)); text != "" && !display {
				eq.Payload, eq.Notation = text, types.NotationText
			}
		case strings.TrimSpace(normalize.Attr(m, "alttext")) != "":
			eq.Payload, eq.Notation = strings.TrimSpace(normalize.Attr(m, "alttext")), types.NotationTeX
		default:
			var buf bytes.Buffer
			if err := html.Render(&buf, m); err == nil {
				eq.Payload, eq.Notation = buf.String(), types.NotationMathML
			}
		}
	}
	return eq
}

func findAnnotation(n *html.Node) *html.Node {
	var found *html.Node
	walkElements(n, func(c *html.Node) bool {
		if c.Data == "annotation" && strings.Contains(normalize.Attr(c, "encoding"), "tex") {
			found = c
			return false
		}
		return true
	})
	return found
}

func findElement(n *html.Node, tag string) *html.Node {
	var found *html.Node
	walkElements(n, func(c *html.Node) bool {
		if c.Data == tag {
			found = c
			return false
		}
		return true
	})
	return found
}

func findClass(n *html.Node, class string) *html.Node {
	var found *html.Node
	walkElements(n, func(c *html.Node) bool {
		if normalize.HasClass(c, class) {
			found = c
			return false
		}
		return true
	})
	return found
}

// walkElements visits element descendants of n depth-first until visit
// returns false.
func walkElements(n *html.Node, visit func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if !visit(c) || !walkElements(c, visit) {
			return false
		}
	}
	return true
}

// list builds a list from a ul or ol element. Nested lists become children
// of the item that contains them; other block content inside an item is
// flattened into the item text.
func (in *inliner) list(n *html.Node) *types.List {
	l := &types.List{Ordered: n.Data == "ol"}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !normalize.IsElement(c, "li") {
			continue
		}
		var (
			item types.ListItem
			run  []types.Inline
		)
		var collect func(*html.Node)
		collect = func(p *html.Node) {
			for k := p.FirstChild; k != nil; k = k.NextSibling {
				switch {
				case normalize.IsElement(k, "ul", "ol"):
					if child := in.list(k); len(child.Items) > 0 {
						item.Children = append(item.Children, *child)
					}
				case k.Type == html.ElementNode && !inlineTags[k.Data]:
					run = append(run, types.Inline{Kind: types.InlineText, Text: " "})
					collect(k)
					run = append(run, types.Inline{Kind: types.InlineText, Text: " "})
				default:
					run = append(run, in.inline(k)...)
				}
			}
		}
		collect(c)
		item.Inlines = trim(merge(run))
		if len(item.Inlines) > 0 || len(item.Children) > 0 {
			l.Items = append(l.Items, item)
		}
	}
	return l
}

// isScanned reports whether the article is only available as page images.
func isScanned(t *normalize.Tree) bool {
	return t.Doc.Find(`section.scanned-pages, figure.fig-scanned, meta[name="ncbi_type"][content="scanpage"]`).Length() > 0
}

func scannedSections(t *normalize.Tree) []types.Section {
	note := types.Section{Blocks: []types.Block{{
		Kind: types.BlockParagraph,
		Paragraph: &types.Paragraph{Inlines: []types.Inline{{
			Kind:     types.InlineEmphasis,
			Children: []types.Inline{{Kind: types.InlineText, Text: ScannedNote}},
		}}},
	}}}

	pages := t.Doc.Find("figure.fig-scanned img")
	if pages.Length() == 0 {
		pages = t.Doc.Find("section.scanned-pages img")
	}
	if pages.Length() == 0 {
		return []types.Section{note}
	}

	full := types.Section{Level: 2, Title: ScannedTitle}
	pages.Each(func(i int, img *goquery.Selection) {
		label := "Page " + strconv.Itoa(i+1)
		alt := normalize.CleanText(img.AttrOr("alt", ""))
		if alt == "" {
			alt = label
		}
		full.Subsections = append(full.Subsections, types.Section{
			Level: 3,
			Title: label,
			Blocks: []types.Block{{Kind: types.BlockFigure, Figure: &types.Figure{
				ImageURL: imageSource(img.Get(0)),
				Alt:      alt,
			}}},
		})
	})
	return []types.Section{note, full}
}
