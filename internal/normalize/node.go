// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of attribute key on n, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Classes returns the whitespace-separated class tokens of n.
func Classes(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	for _, cls := range Classes(n) {
		if cls == c {
			return true
		}
	}
	return false
}

// IsElement reports whether n is an element with one of the given tag names.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// HeadingLevel returns 1-6 for h1..h6 elements and 0 otherwise.
func HeadingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode || len(n.Data) != 2 || n.Data[0] != 'h' {
		return 0
	}
	if l := int(n.Data[1] - '0'); l >= 1 && l <= 6 {
		return l
	}
	return 0
}

// IntAttr parses a positive integer attribute such as colspan, returning
// def when it is missing or invalid.
func IntAttr(n *html.Node, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(Attr(n, key)))
	if err != nil || v < 1 {
		return def
	}
	return v
}
