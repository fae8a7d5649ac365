// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// CleanText NFC-normalizes s, drops invisible and private-use runes,
// collapses whitespace runs to single spaces, and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(collapseSpace(stripInvisible(nfc(s))))
}

// Text returns the cleaned text content of a selection.
func Text(s *goquery.Selection) string {
	return CleanText(s.Text())
}

// NodeText returns the cleaned text content of a node.
func NodeText(n *html.Node) string {
	var b strings.Builder
	appendText(&b, n)
	return CleanText(b.String())
}

func appendText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
}

func nfc(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// collapseSpace replaces every whitespace run with one space. Leading and
// trailing spaces survive as a single space so inline boundaries between
// adjacent nodes are kept.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// stripInvisible removes zero-width characters, control characters other
// than whitespace, and private-use code points.
func stripInvisible(s string) string {
	clean := true
	for _, r := range s {
		if invisible(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	return strings.Map(func(r rune) rune {
		if invisible(r) {
			return -1
		}
		return r
	}, s)
}

func invisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	if unicode.Is(unicode.Co, r) {
		return true
	}
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}
