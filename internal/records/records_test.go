// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmed-markdown/internal/abstract"
	"github.com/pdiddy/pubmed-markdown/internal/store"
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

const fullText = "# Yeast genes\n\n## Metadata\n**PMID:** 31999999\n**PMCID:** PMC7000001\n**URL:** https://pmc.ncbi.nlm.nih.gov/articles/PMC7000001/\n\n## References\n"

func writeMarkdown(t *testing.T, dataDir, name, content string) {
	t.Helper()
	dir := filepath.Join(dataDir, markdownDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want types.Record
	}{
		{
			name: "full text header",
			md:   fullText,
			want: types.Record{
				PMID: "31999999", PMCID: "PMC7000001", Title: "Yeast genes",
				URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC7000001/", Status: types.ConversionDone,
			},
		},
		{
			name: "abstract only",
			md:   "# Letter\n\n## Metadata\n**PMID:** 5\n**URL:** https://pubmed.ncbi.nlm.nih.gov/5/\n\n**" + abstract.Note + "**\n",
			want: types.Record{PMID: "5", Title: "Letter", URL: "https://pubmed.ncbi.nlm.nih.gov/5/", Status: types.ConversionAbstract},
		},
		{
			name: "no header",
			md:   "plain text",
			want: types.Record{Status: types.ConversionDone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.md))
		})
	}
}

func TestScanAndValidate(t *testing.T) {
	dir := t.TempDir()
	writeMarkdown(t, dir, "PMC7000001.md", fullText)
	writeMarkdown(t, dir, "PMID5.md", "# Letter\n\n## Metadata\n**PMID:** 5\n\n**"+abstract.Note+"**\n")
	writeMarkdown(t, dir, "PMC9.md", "no header at all")
	writeMarkdown(t, dir, "notes.txt", "ignored")

	recs, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "markdown/PMC7000001.md", recs[0].MarkdownPath)
	assert.Equal(t, "PMC9", recs[1].PMCID, "id falls back to the file name")
	assert.Equal(t, types.ConversionAbstract, recs[2].Status)
	assert.False(t, recs[0].UpdatedAt.IsZero())

	missing := Validate(recs)
	assert.Equal(t, []Missing{
		{Path: "markdown/PMC9.md", Fields: []string{"pmid", "url"}},
		{Path: "markdown/PMID5.md", Fields: []string{"url"}},
	}, missing)
}

func TestScan_NoDirectory(t *testing.T) {
	_, err := Scan(t.TempDir())
	assert.Error(t, err)
}

func TestSync(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	writeMarkdown(t, dir, "PMC7000001.md", fullText)
	writeMarkdown(t, dir, "orphan.md", "nothing to key on")

	var out bytes.Buffer
	sum, err := Sync(ctx, dir, db, &out)
	require.NoError(t, err)
	assert.Equal(t, SyncSummary{Indexed: 1, Failed: 1}, sum)
	assert.Contains(t, out.String(), "indexing PMC7000001\n")
	assert.Contains(t, out.String(), "failed  orphan.md: no PMID or PMCID\n")

	out.Reset()
	sum, err = Sync(ctx, dir, db, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Contains(t, out.String(), "skipped PMC7000001\n")

	later := time.Now().Add(time.Hour)
	path := filepath.Join(dir, markdownDir, "PMC7000001.md")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(fullText, "Yeast genes", "Yeast genes v2", 1)), 0o644))
	require.NoError(t, os.Chtimes(path, later, later))

	out.Reset()
	sum, err = Sync(ctx, dir, db, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 2, sum.Total())

	r, err := db.Record(ctx, "PMC7000001")
	require.NoError(t, err)
	assert.Equal(t, "Yeast genes v2", r.Title)
}

func TestWriteCSV(t *testing.T) {
	recs := []types.Record{
		{PMID: "5", MarkdownPath: "markdown/PMID5.md", Status: types.ConversionAbstract},
		{PMID: "1", PMCID: "PMC1", URL: "https://x/1, y", MarkdownPath: "markdown/PMC1.md", Status: types.ConversionDone},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))
	assert.Equal(t,
		"pmid,pmcid,markdown_path,url,status\n"+
			"1,PMC1,markdown/PMC1.md,\"https://x/1, y\",converted\n"+
			"5,,markdown/PMID5.md,,abstract_only\n",
		buf.String())
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	recs := []types.Record{{PMID: "1", PMCID: "PMC1", MarkdownPath: "markdown/PMC1.md", Status: types.ConversionDone}}

	require.NoError(t, ExportCSV(dir, recs))
	require.NoError(t, ExportYAML(dir, recs))

	data, err := os.ReadFile(filepath.Join(dir, YAMLFile))
	require.NoError(t, err)
	var got []types.Record
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "PMC1", got[0].PMCID)

	_, err = os.Stat(filepath.Join(dir, CSVFile))
	assert.NoError(t, err)
}
