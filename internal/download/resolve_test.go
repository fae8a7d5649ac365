// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType IdentifierType
		wantNorm string
	}{
		{"pmid bare", "12345678", TypePMID, "12345678"},
		{"pmid prefixed", "PMID: 12345678", TypePMID, "12345678"},
		{"pmid lower prefix", "pmid:42", TypePMID, "42"},
		{"pmcid", "PMC7654321", TypePMCID, "PMC7654321"},
		{"pmcid lower", "pmc7654321", TypePMCID, "PMC7654321"},
		{"pubmed url", "https://pubmed.ncbi.nlm.nih.gov/33333333/", TypePMID, "33333333"},
		{"pmc url new host", "https://pmc.ncbi.nlm.nih.gov/articles/PMC999/", TypePMCID, "PMC999"},
		{"pmc url old host", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC999", TypePMCID, "PMC999"},
		{"whitespace trimmed", "  PMC1  ", TypePMCID, "PMC1"},
		{"doi", "10.1038/s41586-024-07487-w", TypeUnknown, "10.1038/s41586-024-07487-w"},
		{"too long", "1234567890", TypeUnknown, "1234567890"},
		{"empty", "", TypeUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.input)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantNorm, gotNorm)
		})
	}
}

func TestIdentifierTypeString(t *testing.T) {
	assert.Equal(t, "pmid", TypePMID.String())
	assert.Equal(t, "pmcid", TypePMCID.String())
	assert.Equal(t, "unknown", TypeUnknown.String())
}

func TestReadIdentifiers(t *testing.T) {
	input := "# papers\nPMC1\n\n  12345  \n# trailing comment\nhttps://pubmed.ncbi.nlm.nih.gov/9/\n"
	ids, err := ReadIdentifiers(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"PMC1", "12345", "https://pubmed.ncbi.nlm.nih.gov/9/"}, ids)
}
