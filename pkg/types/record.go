// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionStatus indicates the state of HTML-to-markdown conversion for an article.
type ConversionStatus string

const (
	ConversionNone     ConversionStatus = "none"
	ConversionDone     ConversionStatus = "converted"
	ConversionAbstract ConversionStatus = "abstract_only"
	ConversionFailed   ConversionStatus = "failed"
)

// Record is one row of the processing ledger: an article that has a
// markdown file in the data directory.
type Record struct {
	// PMCID is the PubMed Central identifier (e.g. "PMC1234567"). Empty for
	// abstract-only articles.
	PMCID string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`

	// PMID is the PubMed identifier.
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// URL is the article landing page.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Title is the article title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// MarkdownPath is the markdown file relative to the data directory.
	MarkdownPath string `json:"markdown_path" yaml:"markdown_path"`

	// Status records how the markdown was produced.
	Status ConversionStatus `json:"status" yaml:"status"`

	// UpdatedAt is when the ledger last saw the markdown file change.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ID returns the identifier the ledger keys the record by: the PMCID when
// known, otherwise "PMID" followed by the PMID.
func (r Record) ID() string {
	if r.PMCID != "" {
		return r.PMCID
	}
	if r.PMID != "" {
		return "PMID" + r.PMID
	}
	return ""
}

// ArticleMetadata is the YAML sidecar written next to each converted article.
type ArticleMetadata struct {
	Metadata `yaml:",inline"`

	// SourceHTML is the HTML file the markdown was produced from.
	SourceHTML string `json:"source_html,omitempty" yaml:"source_html,omitempty"`

	// ConvertedAt is when the markdown was written.
	ConvertedAt time.Time `json:"converted_at" yaml:"converted_at"`

	// Sections counts top-level sections.
	Sections int `json:"sections" yaml:"sections"`

	// References counts bibliography entries.
	References int `json:"references" yaml:"references"`

	// Warnings lists conversion warnings.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Status records how the markdown was produced.
	Status ConversionStatus `json:"status" yaml:"status"`
}
