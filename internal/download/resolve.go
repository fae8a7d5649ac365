// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// IdentifierType classifies an input identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypePMID
	TypePMCID
)

func (t IdentifierType) String() string {
	switch t {
	case TypePMID:
		return "pmid"
	case TypePMCID:
		return "pmcid"
	default:
		return "unknown"
	}
}

var (
	// pmidPattern matches bare PubMed ids and "PMID:123" forms.
	pmidPattern = regexp.MustCompile(`^(?i:PMID:?\s*)?(\d{1,9})$`)

	// pmcidPattern matches "PMC123" in any case.
	pmcidPattern = regexp.MustCompile(`^(?i:PMC)(\d{1,9})$`)

	// pubmedURLPattern matches PubMed landing pages.
	pubmedURLPattern = regexp.MustCompile(`^https?://(?:www\.)?(?:pubmed\.ncbi\.nlm\.nih\.gov|ncbi\.nlm\.nih\.gov/pubmed)/(\d{1,9})/?`)

	// pmcURLPattern matches PMC article pages on either host.
	pmcURLPattern = regexp.MustCompile(`^https?://(?:www\.ncbi\.nlm\.nih\.gov/pmc|pmc\.ncbi\.nlm\.nih\.gov)/articles/(?i:PMC)(\d{1,9})/?`)
)

// Classify determines the identifier type and returns the normalized form:
// digits for a PMID, "PMC" followed by digits for a PMCID.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if m := pmcidPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMCID, "PMC" + m[1]
	}
	if m := pmcURLPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMCID, "PMC" + m[1]
	}
	if m := pmidPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMID, m[1]
	}
	if m := pubmedURLPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMID, m[1]
	}
	return TypeUnknown, identifier
}

// ReadIdentifiers reads one identifier per line. Blank lines and lines
// starting with # are ignored.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading identifiers: %w", err)
	}
	return ids, nil
}
