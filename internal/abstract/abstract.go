// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package abstract builds abstract-only documents for articles that have no
// PubMed Central copy, from the PubMed efetch XML record.
package abstract

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/pubmed-markdown/internal/assemble"
	"github.com/pdiddy/pubmed-markdown/internal/render"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// efetchBase is the E-utilities efetch endpoint. Declared as a var so tests
// can substitute an httptest server.
var efetchBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

// pubmedBase roots the landing page recorded as the document URL.
const pubmedBase = "https://pubmed.ncbi.nlm.nih.gov/"

const (
	// Note opens every abstract-only document.
	Note = "Note: This article is not available on PubMed Central (Open Access). Only the abstract is included below."

	// NoAbstract stands in for a record without abstract text.
	NoAbstract = "No abstract available."
)

// ErrNoArticle is returned when efetch has no PubmedArticle for the PMID.
var ErrNoArticle = errors.New("no PubMed article in response")

// Getter issues rate-limited GET requests. *httputil.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error)
}

// Fetcher retrieves PubMed records.
type Fetcher struct {
	client Getter
	ncbi   types.NCBIConfig
}

// New returns a Fetcher that identifies itself with ncbi.
func New(client Getter, ncbi types.NCBIConfig) *Fetcher {
	return &Fetcher{client: client, ncbi: ncbi}
}

// Document fetches pmid and builds its abstract-only document.
func (f *Fetcher) Document(ctx context.Context, pmid string) (*types.Document, error) {
	q := url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"rettype": {"xml"},
		"retmode": {"xml"},
	}
	if f.ncbi.Tool != "" {
		q.Set("tool", f.ncbi.Tool)
	}
	if f.ncbi.Email != "" {
		q.Set("email", f.ncbi.Email)
	}
	if f.ncbi.APIKey != "" {
		q.Set("api_key", f.ncbi.APIKey)
	}

	body, err := f.client.Get(ctx, efetchBase, q, "application/xml")
	if err != nil {
		return nil, fmt.Errorf("fetching abstract for PMID %s: %w", pmid, err)
	}
	doc, err := Parse(body, pmid)
	if err != nil {
		return nil, fmt.Errorf("PMID %s: %w", pmid, err)
	}
	return doc, nil
}

// Markdown fetches pmid and renders it in the canonical layout.
func (f *Fetcher) Markdown(ctx context.Context, pmid string) (string, error) {
	doc, err := f.Document(ctx, pmid)
	if err != nil {
		return "", err
	}
	return assemble.Markdown(doc, render.Options{}), nil
}

type articleSet struct {
	Articles []article `xml:"PubmedArticle"`
}

type article struct {
	PMID     string         `xml:"MedlineCitation>PMID"`
	Title    text           `xml:"MedlineCitation>Article>ArticleTitle"`
	Journal  string         `xml:"MedlineCitation>Article>Journal>Title"`
	Year     string         `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>Year"`
	Medline  string         `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>MedlineDate"`
	Abstract []abstractText `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Authors  []author       `xml:"MedlineCitation>Article>AuthorList>Author"`
	Keywords []text         `xml:"MedlineCitation>KeywordList>Keyword"`
	IDs      []articleID    `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type author struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type articleID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

// text is element content with inline markup (<i>, <sup>) flattened.
type text string

func (t *text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	s, err := collectText(d)
	*t = text(s)
	return err
}

type abstractText struct {
	Label string
	Text  string
}

func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = strings.TrimSpace(attr.Value)
		}
	}
	s, err := collectText(d)
	a.Text = s
	return err
}

// collectText reads character data up to the end of the current element.
func collectText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(tok)
		}
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

// Parse builds the abstract-only document from an efetch response.
func Parse(data []byte, pmid string) (*types.Document, error) {
	var set articleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing efetch xml: %w", err)
	}
	if len(set.Articles) == 0 {
		return nil, ErrNoArticle
	}
	a := set.Articles[0]
	for _, c := range set.Articles {
		if c.PMID == pmid {
			a = c
			break
		}
	}
	if a.PMID != "" {
		pmid = a.PMID
	}

	meta := types.Metadata{
		Title:   string(a.Title),
		Journal: strings.TrimSpace(a.Journal),
		Date:    strings.TrimSpace(a.Year),
		PMID:    pmid,
		URL:     pubmedBase + pmid + "/",
	}
	if meta.Title == "" {
		meta.Title = "Unknown Title"
	}
	if meta.Date == "" {
		meta.Date = strings.TrimSpace(a.Medline)
	}
	for _, au := range a.Authors {
		if au.LastName == "" {
			continue
		}
		meta.Authors = append(meta.Authors, strings.TrimSpace(au.ForeName+" "+au.LastName))
	}
	for _, k := range a.Keywords {
		if k != "" {
			meta.Keywords = append(meta.Keywords, string(k))
		}
	}
	for _, id := range a.IDs {
		if id.Type == "doi" && meta.DOI == "" {
			meta.DOI = strings.TrimSpace(id.Value)
		}
	}

	var blocks []types.Block
	for _, p := range a.Abstract {
		if p.Text == "" {
			continue
		}
		var inl []types.Inline
		if p.Label != "" {
			inl = append(inl,
				types.Inline{Kind: types.InlineStrong, Children: []types.Inline{{Kind: types.InlineText, Text: p.Label + ":"}}},
				types.Inline{Kind: types.InlineText, Text: " "},
			)
		}
		inl = append(inl, types.Inline{Kind: types.InlineText, Text: p.Text})
		blocks = append(blocks, paragraph(inl...))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, paragraph(types.Inline{Kind: types.InlineText, Text: NoAbstract}))
	}

	return &types.Document{
		Metadata: meta,
		Sections: []types.Section{
			{Blocks: []types.Block{paragraph(types.Inline{
				Kind:     types.InlineStrong,
				Children: []types.Inline{{Kind: types.InlineText, Text: Note}},
			})}},
			{Level: 2, Title: "Abstract", Blocks: blocks},
		},
	}, nil
}

func paragraph(inl ...types.Inline) types.Block {
	return types.Block{Kind: types.BlockParagraph, Paragraph: &types.Paragraph{Inlines: inl}}
}
