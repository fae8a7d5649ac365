// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Document is the converted form of one article. It is built once per
// conversion and never modified afterwards.
type Document struct {
	// Metadata holds the bibliographic header fields.
	Metadata Metadata `json:"metadata" yaml:"metadata"`

	// Sections lists top-level sections in document order. The abstract,
	// when present, is the first entry. A Level 0 section holds content that
	// precedes the first heading.
	Sections []Section `json:"sections" yaml:"sections"`

	// Bibliography lists resolved entries ordered by Index.
	Bibliography []BibliographyEntry `json:"bibliography" yaml:"bibliography"`

	// Supplement is a markdown fragment appended verbatim after the
	// references. Empty means none.
	Supplement string `json:"supplement,omitempty" yaml:"supplement,omitempty"`
}

// Metadata holds the article header fields. A missing field is the empty
// value and is omitted from rendered output.
type Metadata struct {
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal  string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Date     string   `json:"date,omitempty" yaml:"date,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID     string   `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID    string   `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	PDFURL   string   `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Section is a titled node in the article hierarchy.
type Section struct {
	// Level is the source heading depth (1-6). Zero marks the untitled root.
	Level int `json:"level" yaml:"level"`

	// Title is the heading text with whitespace collapsed.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// ID is the source element id, when one exists.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Blocks holds the content between this heading and the next heading.
	Blocks []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`

	// Subsections holds nested sections in document order.
	Subsections []Section `json:"subsections,omitempty" yaml:"subsections,omitempty"`
}

// BlockKind tags the variant carried by a Block.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockTable     BlockKind = "table"
	BlockFigure    BlockKind = "figure"
	BlockEquation  BlockKind = "equation"
	BlockList      BlockKind = "list"
	BlockCitation  BlockKind = "citation"
	BlockUnknown   BlockKind = "unknown"
)

// Block is one unit of section content. Exactly one payload field matching
// Kind is set. BlockUnknown carries only Text.
type Block struct {
	Kind      BlockKind       `json:"kind" yaml:"kind"`
	Paragraph *Paragraph      `json:"paragraph,omitempty" yaml:"paragraph,omitempty"`
	Table     *Table          `json:"table,omitempty" yaml:"table,omitempty"`
	Figure    *Figure         `json:"figure,omitempty" yaml:"figure,omitempty"`
	Equation  *Equation       `json:"equation,omitempty" yaml:"equation,omitempty"`
	List      *List           `json:"list,omitempty" yaml:"list,omitempty"`
	Citation  *CitationMarker `json:"citation,omitempty" yaml:"citation,omitempty"`
	Text      string          `json:"text,omitempty" yaml:"text,omitempty"`
}

// Paragraph is a run of inline content.
type Paragraph struct {
	Inlines []Inline `json:"inlines" yaml:"inlines"`
}

// InlineKind tags the variant carried by an Inline.
type InlineKind string

const (
	InlineText        InlineKind = "text"
	InlineEmphasis    InlineKind = "emphasis"
	InlineStrong      InlineKind = "strong"
	InlineSubscript   InlineKind = "subscript"
	InlineSuperscript InlineKind = "superscript"
	InlineCode        InlineKind = "code"
	InlineLink        InlineKind = "link"
	InlineCitation    InlineKind = "citation"
	InlineEquation    InlineKind = "equation"
)

// Inline is a piece of paragraph content. Text is set for InlineText and
// InlineCode; container kinds (emphasis, strong, sub, sup, link) use
// Children; InlineCitation uses Keys and keeps the source marker in Text.
type Inline struct {
	Kind     InlineKind `json:"kind" yaml:"kind"`
	Text     string     `json:"text,omitempty" yaml:"text,omitempty"`
	Href     string     `json:"href,omitempty" yaml:"href,omitempty"`
	Keys     []string   `json:"keys,omitempty" yaml:"keys,omitempty"`
	Children []Inline   `json:"children,omitempty" yaml:"children,omitempty"`
	Equation *Equation  `json:"equation,omitempty" yaml:"equation,omitempty"`
}

// Table is a grid of cell strings. Rows are ragged as extracted; renderers
// pad them to the widest row.
type Table struct {
	// Label is the source label such as "Table 1". Empty means the renderer
	// assigns one from its running counter.
	Label    string     `json:"label,omitempty" yaml:"label,omitempty"`
	Caption  string     `json:"caption,omitempty" yaml:"caption,omitempty"`
	Footnote string     `json:"footnote,omitempty" yaml:"footnote,omitempty"`
	Rows     [][]string `json:"rows" yaml:"rows"`

	// HeaderRows counts leading rows that came from thead or th cells.
	HeaderRows int `json:"header_rows" yaml:"header_rows"`

	// Cells parallels Rows for tables whose cells cite references. A nil
	// cell renders from Rows.
	Cells [][][]Inline `json:"cells,omitempty" yaml:"cells,omitempty"`

	// CaptionInlines replaces Caption when the caption cites references.
	CaptionInlines []Inline `json:"caption_inlines,omitempty" yaml:"caption_inlines,omitempty"`
}

// Figure is an image reference with its caption.
type Figure struct {
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Caption  string `json:"caption,omitempty" yaml:"caption,omitempty"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Alt      string `json:"alt,omitempty" yaml:"alt,omitempty"`
	ZoomURL  string `json:"zoom_url,omitempty" yaml:"zoom_url,omitempty"`

	// CaptionInlines replaces Caption when the caption cites references.
	CaptionInlines []Inline `json:"caption_inlines,omitempty" yaml:"caption_inlines,omitempty"`
}

// Notation names the markup language of an equation payload.
type Notation string

const (
	NotationTeX    Notation = "tex"
	NotationMathML Notation = "mathml"
	NotationText   Notation = "text"
)

// Equation keeps a formula payload exactly as found in the source.
type Equation struct {
	Payload  string   `json:"payload" yaml:"payload"`
	Notation Notation `json:"notation" yaml:"notation"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Display  bool     `json:"display" yaml:"display"`
}

// List is an ordered or unordered list. Nesting is carried by ListItem.Children.
type List struct {
	Ordered bool       `json:"ordered" yaml:"ordered"`
	Items   []ListItem `json:"items" yaml:"items"`
}

// ListItem is one list entry and any lists nested beneath it.
type ListItem struct {
	Inlines  []Inline `json:"inlines,omitempty" yaml:"inlines,omitempty"`
	Children []List   `json:"children,omitempty" yaml:"children,omitempty"`
}

// CitationMarker is a citation that stands on its own outside a paragraph.
type CitationMarker struct {
	Keys []string `json:"keys" yaml:"keys"`
	Text string   `json:"text,omitempty" yaml:"text,omitempty"`
}

// Link is a labelled hyperlink attached to a bibliography entry.
type Link struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
}

// BibliographyEntry is one numbered reference.
type BibliographyEntry struct {
	// Index is the 1-based number assigned by first citation in document
	// order. Entries never cited follow in source order.
	Index int `json:"index" yaml:"index"`

	// Key is the source identifier (the list item id).
	Key string `json:"key" yaml:"key"`

	// Aliases are other element ids inside the entry that anchors may target.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Text is the citation text as printed in the source.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year    string `json:"year,omitempty" yaml:"year,omitempty"`
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`

	DOIURL    string `json:"doi_url,omitempty" yaml:"doi_url,omitempty"`
	PMCURL    string `json:"pmc_url,omitempty" yaml:"pmc_url,omitempty"`
	PubMedURL string `json:"pubmed_url,omitempty" yaml:"pubmed_url,omitempty"`
	Links     []Link `json:"links,omitempty" yaml:"links,omitempty"`

	// Unresolved marks a placeholder created for a citation whose key has
	// no entry in the source reference list.
	Unresolved bool `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}
