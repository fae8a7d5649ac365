// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pubmed-markdown/internal/supplement"
)

// SupplementResult holds the outcome of a supplement pass.
type SupplementResult struct {
	Added   int
	Skipped int
	Failed  int
}

// Total returns the number of markdown files examined.
func (r SupplementResult) Total() int {
	return r.Added + r.Skipped + r.Failed
}

// AddSupplements appends supplementary material to the existing full-text
// markdown files of the data directory. Files that already carry BioC
// text are skipped unless overwrite is set; a fallback note is replaced
// once material becomes available.
func (c *Converter) AddSupplements(ctx context.Context, overwrite bool, w io.Writer) (SupplementResult, error) {
	if c.supplements == nil {
		return SupplementResult{}, errors.New("no supplement source configured")
	}
	paths, err := listFiles(filepath.Join(c.dataDir, MarkdownDir), ".md")
	if err != nil {
		return SupplementResult{}, err
	}

	var result SupplementResult
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		id := strings.TrimSuffix(filepath.Base(path), ".md")
		if !strings.HasPrefix(id, "PMC") {
			continue
		}

		switch status, err := c.addSupplement(ctx, id, path, overwrite); {
		case err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
		case status != "":
			fmt.Fprintf(w, "skipped: %s (%s)\n", id, status)
			result.Skipped++
		default:
			fmt.Fprintf(w, "added: %s\n", id)
			result.Added++
		}
	}

	fmt.Fprintf(w, "\nSupplement summary: %d added, %d skipped, %d failed (total: %d)\n",
		result.Added, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// addSupplement returns a skip reason, or "" when the file was rewritten.
func (c *Converter) addSupplement(ctx context.Context, id, path string, overwrite bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)
	if supplement.HasBioC(content) && !overwrite {
		return "already present", nil
	}

	sup, ok, err := c.supplements.Markdown(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "none available", nil
	}

	updated, applied := supplement.Apply(content, sup, overwrite)
	if !applied {
		return "already present", nil
	}
	return "", WriteFile(path, []byte(updated))
}
