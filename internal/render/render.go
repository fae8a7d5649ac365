// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns content blocks into markdown fragments. Each block
// variant has its own function; all of them share a Context that carries
// the citation index, running table and figure counters, and the image
// policy for one document.
package render

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// DefaultBaseURL resolves relative image sources under the remote policy.
const DefaultBaseURL = "https://pmc.ncbi.nlm.nih.gov"

// Citations looks up the bibliography entry a citation key resolves to.
type Citations interface {
	Entry(key string) (types.BibliographyEntry, bool)
}

// Options configures rendering.
type Options struct {
	// BaseURL resolves relative image sources (default DefaultBaseURL).
	BaseURL string

	// ImagePolicy selects how image references are emitted (default remote).
	ImagePolicy types.ImagePolicy

	// RewriteImage, when set, maps every emitted image URL. Callers that
	// rehost images plug in here.
	RewriteImage func(src string) string
}

// Context is per-document render state. It must not be shared between
// documents.
type Context struct {
	opts    Options
	cites   Citations
	base    *url.URL
	tables  int
	figures int
}

// NewContext returns a Context for one document. cites may be nil when the
// document has no citations.
func NewContext(cites Citations, opts Options) *Context {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ImagePolicy == "" {
		opts.ImagePolicy = types.ImageRemote
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		base, _ = url.Parse(DefaultBaseURL)
	}
	return &Context{opts: opts, cites: cites, base: base}
}

// Block renders any content block. Unknown blocks render as their stripped
// text.
func (c *Context) Block(b types.Block) string {
	switch b.Kind {
	case types.BlockParagraph:
		if b.Paragraph != nil {
			return c.Paragraph(*b.Paragraph)
		}
	case types.BlockTable:
		if b.Table != nil {
			return c.Table(*b.Table)
		}
	case types.BlockFigure:
		if b.Figure != nil {
			return c.Figure(*b.Figure)
		}
	case types.BlockEquation:
		if b.Equation != nil {
			return c.Equation(*b.Equation)
		}
	case types.BlockList:
		if b.List != nil {
			return c.List(*b.List)
		}
	case types.BlockCitation:
		if b.Citation != nil {
			return c.Citation(b.Citation.Keys)
		}
	}
	return strings.TrimSpace(b.Text)
}

// Table renders an italic caption line followed by a pipe table. Rows are
// padded to the widest row and the first row is the header row. Nothing is
// truncated.
func (c *Context) Table(t types.Table) string {
	c.tables++
	label := t.Label
	if label == "" {
		label = fmt.Sprintf("Table %d", c.tables)
	}

	caption := t.Caption
	if t.CaptionInlines != nil {
		caption = c.Inlines(t.CaptionInlines)
	}
	var b strings.Builder
	b.WriteString("*" + captionLine(label, caption) + "*\n\n")

	width := 1
	for _, row := range t.Rows {
		width = max(width, len(row))
	}
	rows := t.Rows
	if len(rows) == 0 {
		rows = [][]string{nil}
	}
	for i, row := range rows {
		if i < len(t.Cells) {
			row = c.cells(row, t.Cells[i])
		}
		writeRow(&b, row, width)
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
		}
	}

	if foot := strings.TrimSpace(t.Footnote); foot != "" {
		b.WriteString("\n" + foot + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// cells swaps in the rendered inline run of every cell that has one.
func (c *Context) cells(row []string, runs [][]types.Inline) []string {
	out := append([]string(nil), row...)
	for i, run := range runs {
		if run != nil && i < len(out) {
			out[i] = c.Inlines(run)
		}
	}
	return out
}

func writeRow(b *strings.Builder, row []string, width int) {
	b.WriteString("|")
	for i := 0; i < width; i++ {
		cell := ""
		if i < len(row) {
			cell = escapeCell(row[i])
		}
		b.WriteString(" " + cell + " |")
	}
	b.WriteString("\n")
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func escapeCell(s string) string {
	return strings.TrimSpace(cellReplacer.Replace(s))
}

// captionLine joins a label and caption as "Label. Caption".
func captionLine(label, caption string) string {
	label = strings.TrimRight(strings.TrimSpace(label), ".:")
	caption = strings.TrimSpace(caption)
	switch {
	case label == "":
		return caption
	case caption == "":
		return label + "."
	}
	return label + ". " + caption
}

// Figure renders the image reference with the caption on the next line.
// A figure whose image is not emitted keeps its caption and alt text with
// an unavailable note.
func (c *Context) Figure(f types.Figure) string {
	caption := strings.TrimSpace(f.Caption)
	if f.CaptionInlines != nil {
		caption = strings.TrimSpace(c.Inlines(f.CaptionInlines))
	}
	label := f.Label
	if caption != "" || label != "" {
		c.figures++
		if label == "" {
			label = fmt.Sprintf("Figure %d", c.figures)
		}
	}

	var lines []string
	src := c.imageURL(f.ImageURL)
	if src != "" {
		alt := f.Alt
		if alt == "" {
			alt = label
		}
		if alt == "" {
			alt = "Figure"
		}
		lines = append(lines, "!["+escapeAlt(alt)+"]("+escapeURL(src)+")")
	}

	const missing = "*(image not available)*"
	switch {
	case label != "":
		line := "**" + strings.TrimRight(label, ".:") + ".**"
		if caption != "" {
			line += " " + caption
		}
		if src == "" {
			line += " " + missing
		}
		lines = append(lines, line)
	case src == "":
		if alt := strings.TrimSpace(f.Alt); alt != "" {
			lines = append(lines, alt+" "+missing)
		} else {
			lines = append(lines, missing)
		}
	}

	if f.ZoomURL != "" && src != "" {
		lines = append(lines, "[View larger image]("+escapeURL(c.absolute(f.ZoomURL))+")")
	}
	return strings.Join(lines, "\n")
}

func (c *Context) imageURL(src string) string {
	if src == "" {
		return ""
	}
	switch c.opts.ImagePolicy {
	case types.ImageNone:
		return ""
	case types.ImageRemote:
		src = c.absolute(src)
	}
	if c.opts.RewriteImage != nil {
		src = c.opts.RewriteImage(src)
	}
	return src
}

// absolute resolves src against the base URL. Protocol-relative sources
// become https.
func (c *Context) absolute(src string) string {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return src
	}
	abs := c.base.ResolveReference(u)
	if abs.Scheme == "" {
		abs.Scheme = "https"
	}
	return abs.String()
}

var altReplacer = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeAlt(s string) string { return altReplacer.Replace(s) }

var urlReplacer = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29")

func escapeURL(s string) string { return urlReplacer.Replace(s) }

// Equation renders display formulas as fenced blocks and inline formulas in
// place. The payload is never altered.
func (c *Context) Equation(eq types.Equation) string {
	if !eq.Display {
		return inlineEquation(eq)
	}

	var body string
	switch eq.Notation {
	case types.NotationTeX:
		body = "$$\n" + strings.TrimSpace(eq.Payload) + "\n$$"
	case types.NotationMathML:
		body = "```mathml\n" + strings.TrimSpace(eq.Payload) + "\n```"
	default:
		body = strings.TrimSpace(eq.Payload)
	}
	if label := equationLabel(eq.Label); label != "" {
		return "*Equation " + label + "*\n\n" + body
	}
	return body
}

func equationLabel(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "()[]"))
}

func inlineEquation(eq types.Equation) string {
	payload := strings.TrimSpace(eq.Payload)
	if payload == "" {
		return ""
	}
	switch eq.Notation {
	case types.NotationTeX:
		return "$" + payload + "$"
	case types.NotationMathML:
		return codeSpan(payload)
	}
	return payload
}

// List renders nested lists with children indented under the parent's
// marker.
func (c *Context) List(l types.List) string {
	var b strings.Builder
	c.writeList(&b, l, "")
	return strings.TrimRight(b.String(), "\n")
}

func (c *Context) writeList(b *strings.Builder, l types.List, indent string) {
	for i, item := range l.Items {
		marker := "- "
		if l.Ordered {
			marker = fmt.Sprintf("%d. ", i+1)
		}
		b.WriteString(indent + marker + c.Inlines(item.Inlines) + "\n")
		childIndent := indent + strings.Repeat(" ", len(marker))
		for _, child := range item.Children {
			c.writeList(b, child, childIndent)
		}
	}
}

// Paragraph renders inline content as one markdown paragraph.
func (c *Context) Paragraph(p types.Paragraph) string {
	return strings.TrimSpace(c.Inlines(p.Inlines))
}
