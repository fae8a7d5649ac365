// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package references

import (
	"regexp"
	"strings"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// parseFields fills Authors, Title, Journal, and Year from the citation
// text. Reference styles vary too much for this to be exact; the fields
// are best effort and Text stays authoritative for rendering.
func parseFields(e *types.BibliographyEntry) {
	e.Year = extractYear(e.Text)

	parts := splitOnPeriods(e.Text)
	switch len(parts) {
	case 0:
		return
	case 1:
		e.Title = parts[0]
		return
	}
	e.Authors = parts[0]
	e.Title = parts[1]
	if len(parts) >= 3 {
		e.Journal = cleanVenue(parts[2])
	}
}

// yearRe matches a 4-digit year.
var yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

// extractYear finds the first 4-digit year (19xx or 20xx) in the text.
func extractYear(text string) string {
	m := yearRe.FindStringSubmatch(text)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// initialRe matches an initial that is followed by another initial, a
// comma, or a hyphen ("J. K. Smith", "Smith, J.,"). A lone initial before
// a space ends the author block in Vancouver style ("Jones K. Title").
var initialRe = regexp.MustCompile(`\b([A-Z])\.(\s?[A-Z]\.|,|-)`)

// splitOnPeriods splits an entry into segments at ". " boundaries, but
// avoids splitting on common abbreviations and runs of initials.
func splitOnPeriods(text string) []string {
	safe := strings.ReplaceAll(text, "et al.", "et al\x00")
	safe = strings.ReplaceAll(safe, "e.g.", "e\x00g\x00")
	safe = strings.ReplaceAll(safe, "i.e.", "i\x00e\x00")
	for {
		next := initialRe.ReplaceAllString(safe, "${1}\x00${2}")
		if next == safe {
			break
		}
		safe = next
	}

	var result []string
	for _, p := range strings.Split(safe, ". ") {
		p = strings.ReplaceAll(p, "\x00", ".")
		p = strings.TrimRight(p, ".")
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// cleanVenue strips the year, volume, and page suffixes from a venue
// segment.
func cleanVenue(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ";:"); i > 0 {
		text = text[:i]
	}
	text = yearRe.ReplaceAllString(text, "")
	text = strings.TrimRight(text, "., ")
	return strings.TrimSpace(text)
}
