// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata reads the article header fields (title, authors,
// journal, date, DOI, PMID, PMCID, URL) from a normalized tree. Each field
// has a prioritized list of landmarks; the first non-empty landmark wins and
// a field with no landmark stays empty.
package metadata

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// ArticleURLBase is the PMC article page prefix used when the page has no
// canonical link.
var ArticleURLBase = "https://www.ncbi.nlm.nih.gov/pmc/articles/"

var (
	pmcidRe     = regexp.MustCompile(`PMC\d+`)
	pmcidTextRe = regexp.MustCompile(`PMCID:\s*(PMC\d+)`)
	pmidTextRe  = regexp.MustCompile(`PMID:\s*(\d+)`)
	doiRe       = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	titleSuffix = regexp.MustCompile(`\s+-\s+PMC\s*$`)

	keywordLabel = regexp.MustCompile(`(?i)^\s*key\s*words?\s*:?\s*`)
)

// landmark yields a candidate value for a field, or "".
type landmark func(t *normalize.Tree) string

// Extract reads metadata from t. A missing title yields a data-quality
// warning; other missing fields are simply left empty.
func Extract(t *normalize.Tree) (types.Metadata, types.Warnings) {
	var warnings types.Warnings

	md := types.Metadata{
		Title:   first(t, titleLandmarks),
		Authors: metaAll(t, "citation_author"),
		Journal: first(t, []landmark{meta("citation_journal_title"), meta("DC.Source")}),
		Date:    first(t, []landmark{meta("citation_publication_date"), meta("citation_date"), meta("DC.Date")}),
		DOI:     first(t, []landmark{meta("citation_doi"), dcDOI}),
		PMID:    first(t, []landmark{meta("citation_pmid"), textMatch(pmidTextRe)}),
		PMCID:   first(t, []landmark{canonicalPMCID, textMatch(pmcidTextRe)}),
		PDFURL:  first(t, []landmark{meta("citation_pdf_url")}),
	}
	if len(md.Authors) == 0 {
		md.Authors = metaAll(t, "DC.Creator")
	}
	md.DOI = strings.TrimPrefix(md.DOI, "doi:")
	md.URL = first(t, []landmark{canonicalHref, meta("citation_fulltext_html_url")})
	if md.URL == "" && md.PMCID != "" {
		md.URL = ArticleURLBase + md.PMCID + "/"
	}
	md.Keywords = keywords(t)

	if md.Title == "" {
		warnings = append(warnings, types.DataQuality("", "no article title found"))
	}
	return md, warnings
}

var titleLandmarks = []landmark{
	meta("citation_title"),
	meta("DC.Title"),
	metaProperty("og:title"),
	selector("h1.content-title"),
	func(t *normalize.Tree) string {
		return titleSuffix.ReplaceAllString(normalize.Text(t.Doc.Find("title").First()), "")
	},
	selector("h1"),
}

func first(t *normalize.Tree, marks []landmark) string {
	for _, m := range marks {
		if v := m(t); v != "" {
			return v
		}
	}
	return ""
}

func meta(name string) landmark {
	return func(t *normalize.Tree) string {
		return normalize.CleanText(t.Doc.Find(`meta[name="` + name + `"]`).First().AttrOr("content", ""))
	}
}

func metaProperty(prop string) landmark {
	return func(t *normalize.Tree) string {
		return normalize.CleanText(t.Doc.Find(`meta[property="` + prop + `"]`).First().AttrOr("content", ""))
	}
}

func metaAll(t *normalize.Tree, name string) []string {
	var out []string
	t.Doc.Find(`meta[name="` + name + `"]`).Each(func(_ int, s *goquery.Selection) {
		if v := normalize.CleanText(s.AttrOr("content", "")); v != "" {
			out = append(out, v)
		}
	})
	return out
}

func selector(sel string) landmark {
	return func(t *normalize.Tree) string {
		return normalize.Text(t.Doc.Find(sel).First())
	}
}

func dcDOI(t *normalize.Tree) string {
	var doi string
	t.Doc.Find(`meta[name="DC.Identifier"], meta[name="dc.identifier"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v := strings.TrimPrefix(normalize.CleanText(s.AttrOr("content", "")), "doi:")
		if doiRe.MatchString(v) {
			doi = v
			return false
		}
		return true
	})
	return doi
}

func canonicalHref(t *normalize.Tree) string {
	return strings.TrimSpace(t.Doc.Find(`link[rel="canonical"]`).First().AttrOr("href", ""))
}

func canonicalPMCID(t *normalize.Tree) string {
	return pmcidRe.FindString(canonicalHref(t))
}

func textMatch(re *regexp.Regexp) landmark {
	return func(t *normalize.Tree) string {
		if m := re.FindStringSubmatch(normalize.Text(t.Doc.Find("body"))); m != nil {
			return m[1]
		}
		return ""
	}
}

func keywords(t *normalize.Tree) []string {
	var out []string
	for _, v := range metaAll(t, "citation_keywords") {
		out = append(out, splitKeywords(v)...)
	}
	if len(out) > 0 {
		return out
	}
	group := t.Doc.Find("section.kwd-group, div.kwd-group").First()
	group.Find(".kwd-text, .kwd").Each(func(_ int, s *goquery.Selection) {
		out = append(out, splitKeywords(normalize.Text(s))...)
	})
	if len(out) == 0 && group.Length() > 0 {
		text := keywordLabel.ReplaceAllString(normalize.Text(group), "")
		out = splitKeywords(text)
	}
	return out
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
