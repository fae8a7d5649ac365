// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubmed-markdown/internal/normalize"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

const methodsArticle = `<html><head><title>Methods paper</title></head><body>
<h2>Methods</h2>
<p>We followed prior work<a href="#ref1">1</a>.</p>
<table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>
<section class="ref-list"><ul class="ref-list"><li id="ref1">Smith 2020. Some title.</li></ul></section>
</body></html>`

const pmcArticle = `<!DOCTYPE html>
<html><head>
<meta name="citation_title" content="Yeast genes under stress">
<meta name="citation_author" content="Ann Lee">
<meta name="citation_author" content="Bo Chen">
<meta name="citation_journal_title" content="Cell Reports">
<meta name="citation_doi" content="10.1016/j.celrep.2020.01.001">
<meta name="citation_pmid" content="31999999">
<link rel="canonical" href="https://pmc.ncbi.nlm.nih.gov/articles/PMC7000001/">
<script>var tracking = 1;</script>
</head><body>
<nav class="usa-nav">Home | Search</nav>
<article>
<h1 class="content-title">Yeast genes under stress</h1>
<section class="abstract" id="abstract1"><h2>Abstract</h2><p>We studied yeast.</p></section>
<section class="main-article-body">
<section id="sec1"><h2>Introduction</h2>
<p>Stress matters <a href="#B2" class="usa-link">2</a>, <a href="#B1" class="usa-link">1</a>.</p>
<p>See also <a href="#B2">2</a> and <a href="#B7">7</a>.</p>
</section>
<section id="sec2"><h2>Results</h2>
<section class="tw" id="T1"><h3 class="obj_head">Table 1.</h3><div class="caption"><p>Counts.</p></div>
<table><thead><tr><th>Strain</th><th>n</th></tr></thead><tbody><tr><td>WT</td><td>5</td></tr></tbody></table></section>
<figure class="fig" id="F1"><h3 class="obj_head">Figure 1.</h3><img src="/articles/PMC7000001/bin/f1.jpg" alt="growth curve"><figcaption><p>Growth.</p></figcaption></figure>
</section>
</section>
<section class="ref-list"><h2>References</h2><ul class="ref-list">
<li id="B1"><cite>Smith J. First paper. Nature. 2019.</cite> [<a href="https://doi.org/10.1/one">DOI</a>]</li>
<li id="B2"><cite>Jones K. Second paper. Cell. 2018.</cite> [<a href="https://pubmed.ncbi.nlm.nih.gov/2/">PubMed</a>]</li>
<li id="B3"><cite>Never cited. 2017.</cite></li>
</ul></section>
</article></body></html>`

func TestConvertToMarkdown_MethodsScenario(t *testing.T) {
	md, _, err := ConvertToMarkdown(methodsArticle)
	require.NoError(t, err)

	assert.Contains(t, md, "\n## Methods\n")
	assert.Contains(t, md, "We followed prior work[[1]](#ref-1).")
	assert.Contains(t, md, "| a | b |\n| --- | --- |\n| c | d |\n")
	assert.Contains(t, md, "\n## References\n\n1. Smith 2020. Some title. <a id=\"ref-1\"></a>\n")
	assert.Equal(t, 1, strings.Count(md, "<a id="), "exactly one bibliography entry")

	var rows int
	for _, l := range strings.Split(md, "\n") {
		if strings.HasPrefix(l, "| ") && !strings.HasPrefix(l, "| ---") {
			rows++
		}
	}
	assert.Equal(t, 2, rows)
}

func TestConvertToMarkdown_NoHeadings(t *testing.T) {
	md, _, err := ConvertToMarkdown(`<html><body><p>Just text.</p><p>More.</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "## Metadata\n\nJust text.\n\nMore.\n\n## References\n", md)
}

func TestConvert_PMCArticle(t *testing.T) {
	doc, warnings, err := Convert(pmcArticle)
	require.NoError(t, err)

	assert.Equal(t, "Yeast genes under stress", doc.Metadata.Title)
	assert.Equal(t, []string{"Ann Lee", "Bo Chen"}, doc.Metadata.Authors)
	assert.Equal(t, "PMC7000001", doc.Metadata.PMCID)
	assert.Equal(t, "31999999", doc.Metadata.PMID)

	var titles []string
	for _, s := range doc.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Abstract", "Introduction", "Results"}, titles)

	// B2 is cited first, then B1, then the dangling B7; B3 is never cited.
	require.Len(t, doc.Bibliography, 4)
	got := make([]string, len(doc.Bibliography))
	for i, e := range doc.Bibliography {
		got[i] = e.Key
		assert.Equal(t, i+1, e.Index)
	}
	assert.Equal(t, []string{"B2", "B1", "B7", "B3"}, got)
	assert.True(t, doc.Bibliography[2].Unresolved)

	assert.Equal(t, 1, warnings.Count(types.WarningUnresolvedCitation))
}

func TestConvertToMarkdown_PMCArticle(t *testing.T) {
	md, _, err := ConvertToMarkdown(pmcArticle)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Yeast genes under stress\n\n## Metadata\n**Authors:** Ann Lee, Bo Chen\n"))
	assert.Contains(t, md, "**DOI:** [10.1016/j.celrep.2020.01.001](https://doi.org/10.1016/j.celrep.2020.01.001)")
	assert.Contains(t, md, "## Abstract\n\nWe studied yeast.")
	assert.Contains(t, md, "Stress matters [[1]](#ref-1), [[2]](#ref-2).")
	assert.Contains(t, md, "See also [[1]](#ref-1) and [[3?]](#ref-3).")
	assert.Contains(t, md, "*Table 1. Counts.*\n\n| Strain | n |\n| --- | --- |\n| WT | 5 |")
	assert.Contains(t, md, "![growth curve](https://pmc.ncbi.nlm.nih.gov/articles/PMC7000001/bin/f1.jpg)\n**Figure 1.** Growth.")
	assert.Contains(t, md, "1. Jones K. Second paper. Cell. 2018. [PubMed](https://pubmed.ncbi.nlm.nih.gov/2/) <a id=\"ref-1\"></a>")
	assert.Contains(t, md, "3. [unresolved citation: B7] <a id=\"ref-3\"></a>")
	assert.Contains(t, md, "4. Never cited. 2017. <a id=\"ref-4\"></a>")

	assert.NotContains(t, md, "tracking")
	assert.NotContains(t, md, "Home | Search")
	assert.Equal(t, 1, strings.Count(md, "\n## References\n"))
}

func TestConvertToMarkdown_Deterministic(t *testing.T) {
	first, _, err := ConvertToMarkdown(pmcArticle)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, _, err := ConvertToMarkdown(pmcArticle)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

var citationLinkRe = regexp.MustCompile(`\[\[(\d+)\??\]\]\(#ref-(\d+)\)`)

func TestConvertToMarkdown_CitationRoundTrip(t *testing.T) {
	md, _, err := ConvertToMarkdown(pmcArticle)
	require.NoError(t, err)

	matches := citationLinkRe.FindAllStringSubmatch(md, -1)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, m[1], m[2])
		assert.Contains(t, md, `<a id="ref-`+m[2]+`"></a>`)
	}
	body := md[:strings.Index(md, "\n## References\n")]
	assert.NotContains(t, body, "[unresolved citation:", "every marker has an entry")
}

func TestConvertToMarkdown_CitationsInTablesAndFigures(t *testing.T) {
	src := `<html><body>
<h2>Results</h2>
<p>Prior work <a href="#B3">3</a>.</p>
<table><tr><th>Study</th><th>n</th></tr><tr><td>x <a href="#B1">1</a></td><td>y</td></tr></table>
<figure><img src="f.png"><figcaption>Figure 1. Data from <a href="#B2">2</a>.</figcaption></figure>
<section class="ref-list"><ul class="ref-list">
<li id="B1">One. 2001.</li><li id="B2">Two. 2002.</li><li id="B3">Three. 2003.</li>
</ul></section>
</body></html>`

	md, _, err := ConvertToMarkdown(src)
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{"paragraph cites first", "Prior work [[1]](#ref-1)."},
		{"table cell", "| x [[2]](#ref-2) | y |"},
		{"figure caption", "**Figure 1.** Data from [[3]](#ref-3)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, md, tt.want)
		})
	}
	assert.NotContains(t, md, "| x 1 |")
}

func TestConvertToMarkdown_ImageNotEmitted(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts []Option
		want string
	}{
		{
			name: "none policy",
			src:  `<p>before</p><img src="f.png"><p>after</p>`,
			opts: []Option{WithImagePolicy(types.ImageNone)},
			want: "before\n\n*(image not available)*\n\nafter",
		},
		{
			name: "none policy keeps alt",
			src:  `<p>before</p><img src="f.png" alt="Page 1"><p>after</p>`,
			opts: []Option{WithImagePolicy(types.ImageNone)},
			want: "before\n\nPage 1 *(image not available)*\n\nafter",
		},
		{
			name: "rewriter drops image",
			src:  `<p>before</p><img src="f.png"><p>after</p>`,
			opts: []Option{WithImageRewriter(func(string) string { return "" })},
			want: "before\n\n*(image not available)*\n\nafter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, _, err := ConvertToMarkdown(tt.src, tt.opts...)
			require.NoError(t, err)
			assert.Contains(t, md, tt.want)
		})
	}
}

func TestConvert_MalformedInput(t *testing.T) {
	for _, src := range []string{"", "   ", "no markup here", "\xff\xfe"} {
		doc, _, err := Convert(src)
		assert.Nil(t, doc)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedInput), "%q: %v", src, err)

		var me *normalize.MalformedInputError
		assert.True(t, errors.As(err, &me))
	}
}

func TestConvertToMarkdown_GracefulDegradation(t *testing.T) {
	md, warnings, err := ConvertToMarkdown(`<div><table></table><figure><figcaption>Lost figure</figcaption></figure></div>`)
	require.NoError(t, err)
	assert.Contains(t, md, "## Metadata")
	assert.Contains(t, md, "Lost figure *(image not available)*")
	assert.Contains(t, md, "## References")
	assert.Positive(t, warnings.Count(types.WarningDataQuality))
}

func TestOptions(t *testing.T) {
	t.Run("supplement appended after references", func(t *testing.T) {
		sup := "## Supplementary Materials\n\n### data.xlsx\n\nrows"
		md, _, err := ConvertToMarkdown(methodsArticle, WithSupplement(sup))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(md, "<a id=\"ref-1\"></a>\n\n"+sup+"\n"))
	})

	t.Run("image policy none", func(t *testing.T) {
		md, _, err := ConvertToMarkdown(pmcArticle, WithImagePolicy(types.ImageNone))
		require.NoError(t, err)
		assert.NotContains(t, md, "![")
		assert.Contains(t, md, "**Figure 1.** Growth.")
	})

	t.Run("base url and rewriter", func(t *testing.T) {
		var seen []string
		md, _, err := ConvertToMarkdown(pmcArticle,
			WithBaseURL("https://mirror.example.org"),
			WithImageRewriter(func(src string) string {
				seen = append(seen, src)
				return "local/f1.jpg"
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://mirror.example.org/articles/PMC7000001/bin/f1.jpg"}, seen)
		assert.Contains(t, md, "![growth curve](local/f1.jpg)")
	})

	t.Run("warnings logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		_, _, err := Convert(pmcArticle, WithLogger(logger))
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "kind=unresolved_citation")
		assert.Contains(t, buf.String(), "article=PMC7000001")
	})
}

func TestEngine_ImplementsConverter(t *testing.T) {
	var c Converter = New()
	md, _, err := c.ConvertToMarkdown(methodsArticle)
	require.NoError(t, err)
	assert.NotEmpty(t, md)
}

func TestMarkdown_FromDocument(t *testing.T) {
	doc, _, err := Convert(methodsArticle)
	require.NoError(t, err)
	md, _, err := ConvertToMarkdown(methodsArticle)
	require.NoError(t, err)
	assert.Equal(t, md, Markdown(doc))
}
