// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package references

import (
	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

// Resolver assigns bibliography numbers for one document. It is not safe
// for concurrent use and must not be reused across documents.
type Resolver struct {
	catalog  *Catalog
	entries  []types.BibliographyEntry
	byKey    map[string]int // key or alias -> position in entries
	used     map[int]bool   // catalog positions already numbered
	warnings types.Warnings
	final    bool
}

// NewResolver returns a Resolver over catalog. A nil catalog behaves like
// an empty reference list.
func NewResolver(catalog *Catalog) *Resolver {
	if catalog == nil {
		catalog = &Catalog{byKey: map[string]int{}}
	}
	return &Resolver{
		catalog: catalog,
		byKey:   make(map[string]int),
		used:    make(map[int]bool),
	}
}

// Resolve returns the number of the entry key refers to, assigning the
// next number on first sight. A key missing from the catalog gets a
// placeholder entry and an unresolved-citation warning.
func (r *Resolver) Resolve(key string) int {
	if pos, ok := r.byKey[key]; ok {
		return r.entries[pos].Index
	}

	if cpos, ok := r.catalog.lookup(key); ok && !r.used[cpos] {
		r.used[cpos] = true
		return r.number(r.catalog.entries[cpos])
	}

	r.warnings = append(r.warnings, types.Warning{
		Kind:    types.WarningUnresolvedCitation,
		Message: "citation " + key + " has no bibliography entry",
	})
	return r.number(types.BibliographyEntry{Key: key, Unresolved: true})
}

func (r *Resolver) number(e types.BibliographyEntry) int {
	e.Index = len(r.entries) + 1
	pos := len(r.entries)
	r.entries = append(r.entries, e)
	for _, k := range append([]string{e.Key}, e.Aliases...) {
		if _, ok := r.byKey[k]; !ok {
			r.byKey[k] = pos
		}
	}
	return e.Index
}

// Walk resolves every citation in secs in document order.
func (r *Resolver) Walk(secs []types.Section) {
	for _, s := range secs {
		for _, b := range s.Blocks {
			r.block(b)
		}
		r.Walk(s.Subsections)
	}
}

func (r *Resolver) block(b types.Block) {
	switch {
	case b.Paragraph != nil:
		r.inlines(b.Paragraph.Inlines)
	case b.List != nil:
		r.list(*b.List)
	case b.Citation != nil:
		r.keys(b.Citation.Keys)
	case b.Table != nil:
		r.inlines(b.Table.CaptionInlines)
		for _, row := range b.Table.Cells {
			for _, cell := range row {
				r.inlines(cell)
			}
		}
	case b.Figure != nil:
		r.inlines(b.Figure.CaptionInlines)
	}
}

func (r *Resolver) list(l types.List) {
	for _, item := range l.Items {
		r.inlines(item.Inlines)
		for _, child := range item.Children {
			r.list(child)
		}
	}
}

func (r *Resolver) inlines(in []types.Inline) {
	for _, il := range in {
		if il.Kind == types.InlineCitation {
			r.keys(il.Keys)
		}
		r.inlines(il.Children)
	}
}

func (r *Resolver) keys(keys []string) {
	for _, k := range keys {
		r.Resolve(k)
	}
}

// Finalize appends uncited catalog entries in source order and returns the
// numbered bibliography. Later calls return the same list.
func (r *Resolver) Finalize() []types.BibliographyEntry {
	if !r.final {
		for i, e := range r.catalog.entries {
			if !r.used[i] {
				r.used[i] = true
				r.number(e)
			}
		}
		r.final = true
	}
	return append([]types.BibliographyEntry(nil), r.entries...)
}

// Warnings returns the unresolved-citation warnings raised so far.
func (r *Resolver) Warnings() types.Warnings {
	return r.warnings
}

// Entry looks up the numbered entry for key or one of its aliases.
func (r *Resolver) Entry(key string) (types.BibliographyEntry, bool) {
	pos, ok := r.byKey[key]
	if !ok {
		return types.BibliographyEntry{}, false
	}
	return r.entries[pos], true
}

// Index maps citation keys to numbered entries of a finished bibliography.
type Index map[string]types.BibliographyEntry

// NewIndex indexes entries by key and alias.
func NewIndex(entries []types.BibliographyEntry) Index {
	idx := make(Index, len(entries))
	for _, e := range entries {
		for _, k := range append([]string{e.Key}, e.Aliases...) {
			if _, ok := idx[k]; !ok {
				idx[k] = e
			}
		}
	}
	return idx
}

// Entry implements render.Citations.
func (idx Index) Entry(key string) (types.BibliographyEntry, bool) {
	e, ok := idx[key]
	return e, ok
}
