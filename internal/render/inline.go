// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"strings"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// Inlines renders a run of inline content.
func (c *Context) Inlines(in []types.Inline) string {
	var b strings.Builder
	for _, il := range in {
		b.WriteString(c.inline(il))
	}
	return b.String()
}

func (c *Context) inline(il types.Inline) string {
	switch il.Kind {
	case types.InlineText:
		return il.Text
	case types.InlineEmphasis:
		return delimit("*", c.Inlines(il.Children))
	case types.InlineStrong:
		return delimit("**", c.Inlines(il.Children))
	case types.InlineSubscript:
		return delimit("~", c.Inlines(il.Children))
	case types.InlineSuperscript:
		return delimit("^", c.Inlines(il.Children))
	case types.InlineCode:
		return codeSpan(il.Text)
	case types.InlineLink:
		return c.link(il)
	case types.InlineCitation:
		return c.Citation(il.Keys)
	case types.InlineEquation:
		if il.Equation != nil {
			return inlineEquation(*il.Equation)
		}
	}
	return c.Inlines(il.Children)
}

// delimit wraps text in a markdown delimiter, keeping surrounding
// whitespace outside the markers. Blank text is returned unwrapped.
func delimit(d, text string) string {
	inner := strings.TrimSpace(text)
	if inner == "" {
		return text
	}
	lead := text[:strings.Index(text, inner)]
	trail := text[len(lead)+len(inner):]
	return lead + d + inner + d + trail
}

func codeSpan(s string) string {
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

func (c *Context) link(il types.Inline) string {
	text := strings.TrimSpace(c.Inlines(il.Children))
	if text == "" {
		text = il.Href
	}
	return "[" + text + "](" + c.URL(il.Href) + ")"
}

// URL makes a link target absolute against the base URL. Fragments and
// mailto targets are kept as they are.
func (c *Context) URL(href string) string {
	if !strings.HasPrefix(href, "#") && !strings.Contains(href, "://") && !strings.HasPrefix(href, "mailto:") {
		href = c.absolute(href)
	}
	return escapeURL(href)
}

// Citation renders citation markers as numbered links into the reference
// list. Placeholders for unresolved keys carry a trailing question mark.
func (c *Context) Citation(keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, c.citation(key))
	}
	return strings.Join(parts, ", ")
}

func (c *Context) citation(key string) string {
	if c.cites != nil {
		if e, ok := c.cites.Entry(key); ok {
			if e.Unresolved {
				return fmt.Sprintf("[[%d?]](#%s)", e.Index, Anchor(e.Index))
			}
			return fmt.Sprintf("[[%d]](#%s)", e.Index, Anchor(e.Index))
		}
	}
	return "[unresolved citation: " + key + "]"
}

// Anchor returns the fragment id of bibliography entry n.
func Anchor(n int) string {
	return fmt.Sprintf("ref-%d", n)
}
