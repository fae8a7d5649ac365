// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the pipeline's SQLite state under
// dataDir/cache/pubmed.db: the PMID to PMCID cache, the supplement cache,
// and the processing-records ledger.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

const (
	// CacheDir is the data subdirectory holding the database.
	CacheDir = "cache"
	dbFile   = "pubmed.db"
)

// ErrNotFound is returned when a key has no (fresh) row.
var ErrNotFound = errors.New("not found")

// Store manages the pipeline SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens or creates dataDir/cache/pubmed.db and its schema.
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, CacheDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pmcid_cache (
			pmid TEXT PRIMARY KEY,
			pmcid TEXT NOT NULL DEFAULT '',
			fetched_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS supplement_cache (
			pmcid TEXT PRIMARY KEY,
			available INTEGER NOT NULL,
			markdown TEXT NOT NULL DEFAULT '',
			fetched_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			pmid TEXT,
			pmcid TEXT,
			url TEXT,
			title TEXT,
			markdown_path TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_pmid ON records(pmid)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// PMCID returns the cached PMCID for pmid. An empty string with a nil error
// is a cached miss: idconv answered and the article has no PMC copy.
// Entries older than maxAge (when positive) report ErrNotFound.
func (s *Store) PMCID(ctx context.Context, pmid string, maxAge time.Duration) (string, error) {
	var pmcid, fetched string
	err := s.db.QueryRowContext(ctx,
		`SELECT pmcid, fetched_at FROM pmcid_cache WHERE pmid = ?`, pmid,
	).Scan(&pmcid, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying pmcid cache: %w", err)
	}
	if s.stale(fetched, maxAge) {
		return "", ErrNotFound
	}
	return pmcid, nil
}

// PutPMCIDs caches a batch of conversions. An empty value records a miss.
func (s *Store) PutPMCIDs(ctx context.Context, mapping map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pmcid_cache (pmid, pmcid, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(pmid) DO UPDATE SET pmcid=excluded.pmcid, fetched_at=excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	at := s.stamp()
	for pmid, pmcid := range mapping {
		if _, err := stmt.ExecContext(ctx, pmid, pmcid, at); err != nil {
			return fmt.Errorf("caching pmid %s: %w", pmid, err)
		}
	}
	return tx.Commit()
}

// Supplement is a cached BioC lookup.
type Supplement struct {
	Available bool
	Markdown  string
	FetchedAt time.Time
}

// Supplement returns the cached supplement for pmcid or ErrNotFound.
func (s *Store) Supplement(ctx context.Context, pmcid string) (Supplement, error) {
	var (
		sup     Supplement
		fetched string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT available, markdown, fetched_at FROM supplement_cache WHERE pmcid = ?`, pmcid,
	).Scan(&sup.Available, &sup.Markdown, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Supplement{}, ErrNotFound
	}
	if err != nil {
		return Supplement{}, fmt.Errorf("querying supplement cache: %w", err)
	}
	sup.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	return sup, nil
}

// PutSupplement caches the supplement lookup for pmcid.
func (s *Store) PutSupplement(ctx context.Context, pmcid string, available bool, markdown string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supplement_cache (pmcid, available, markdown, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(pmcid) DO UPDATE SET
			available=excluded.available, markdown=excluded.markdown, fetched_at=excluded.fetched_at`,
		pmcid, available, markdown, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("caching supplement %s: %w", pmcid, err)
	}
	return nil
}

// PutRecord inserts or replaces the ledger row keyed by r.ID().
func (s *Store) PutRecord(ctx context.Context, r types.Record) error {
	id := r.ID()
	if id == "" {
		return fmt.Errorf("record %s has neither pmcid nor pmid", r.MarkdownPath)
	}
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, pmid, pmcid, url, title, markdown_path, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			pmid=excluded.pmid, pmcid=excluded.pmcid, url=excluded.url, title=excluded.title,
			markdown_path=excluded.markdown_path, status=excluded.status, updated_at=excluded.updated_at`,
		id, r.PMID, r.PMCID, r.URL, r.Title, r.MarkdownPath, string(r.Status),
		updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting record %s: %w", id, err)
	}
	return nil
}

// Record returns the ledger row with the given id or ErrNotFound.
func (s *Store) Record(ctx context.Context, id string) (types.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pmid, pmcid, url, title, markdown_path, status, updated_at FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, ErrNotFound
	}
	return r, err
}

// Records returns every ledger row ordered by id.
func (s *Store) Records(ctx context.Context) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pmid, pmcid, url, title, markdown_path, status, updated_at FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.Record, error) {
	var (
		r                       types.Record
		pmid, pmcid, url, title sql.NullString
		status, updated         string
	)
	if err := sc.Scan(&pmid, &pmcid, &url, &title, &r.MarkdownPath, &status, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning record: %w", err)
	}
	r.PMID, r.PMCID, r.URL, r.Title = pmid.String, pmcid.String, url.String, title.String
	r.Status = types.ConversionStatus(status)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return r, nil
}

// ClearSummary counts rows removed by Clear.
type ClearSummary struct {
	PMCIDs      int64
	Supplements int64
}

// Clear empties both caches. The records ledger is kept.
func (s *Store) Clear(ctx context.Context) (ClearSummary, error) {
	var sum ClearSummary
	res, err := s.db.ExecContext(ctx, `DELETE FROM pmcid_cache`)
	if err != nil {
		return sum, fmt.Errorf("clearing pmcid cache: %w", err)
	}
	sum.PMCIDs, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM supplement_cache`)
	if err != nil {
		return sum, fmt.Errorf("clearing supplement cache: %w", err)
	}
	sum.Supplements, _ = res.RowsAffected()
	return sum, nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) stale(fetched string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	at, err := time.Parse(time.RFC3339Nano, fetched)
	if err != nil {
		return true
	}
	return s.now().Sub(at) > maxAge
}
