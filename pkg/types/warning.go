// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// WarningKind classifies a non-fatal conversion problem.
type WarningKind string

const (
	// WarningDataQuality marks a field or block that could not be extracted
	// faithfully.
	WarningDataQuality WarningKind = "data_quality"

	// WarningUnresolvedCitation marks a citation whose key has no
	// bibliography entry.
	WarningUnresolvedCitation WarningKind = "unresolved_citation"
)

// Warning is returned alongside a Document. It never aborts conversion.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`

	// Section is the title of the enclosing section, if any.
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
}

func (w Warning) String() string {
	if w.Section != "" {
		return fmt.Sprintf("%s: %s (in %q)", w.Kind, w.Message, w.Section)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// Warnings is an ordered collection of warnings.
type Warnings []Warning

// DataQuality builds a data-quality warning.
func DataQuality(section, format string, args ...any) Warning {
	return Warning{Kind: WarningDataQuality, Message: fmt.Sprintf(format, args...), Section: section}
}

// Count returns how many warnings have the given kind.
func (ws Warnings) Count(kind WarningKind) int {
	n := 0
	for _, w := range ws {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
