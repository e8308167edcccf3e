// Package store persists site records and harvested document links in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nexex18/Restorical-Wisconsin/models"
)

// Doc-scrape states on the sites table.
const (
	DocsPending = 0
	DocsScraped = 1
	DocsFailed  = -1
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			brrts_number TEXT UNIQUE NOT NULL,
			detail_seq_no TEXT,
			activity_name TEXT,
			activity_type TEXT,
			status TEXT,
			county TEXT,
			address TEXT,
			municipality TEXT,
			start_date TEXT,
			end_date TEXT,
			source_url TEXT,
			docs_scraped INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sites_dsn ON sites(detail_seq_no);`,
		`CREATE INDEX IF NOT EXISTS idx_sites_county ON sites(county);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			brrts_number TEXT NOT NULL,
			detail_seq_no TEXT,
			doc_seq_no INTEGER NOT NULL,
			title TEXT,
			document_date TEXT,
			document_type TEXT,
			document_url TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(brrts_number, doc_seq_no)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_brrts ON documents(brrts_number);`,
		`CREATE TABLE IF NOT EXISTS scrape_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertSites inserts new site rows and returns how many were new.
// Existing BRRTS numbers are left untouched so scrape state survives
// re-runs of the list scraper.
func (s *Store) UpsertSites(ctx context.Context, sites []models.Site) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO sites
		(brrts_number, detail_seq_no, activity_name, activity_type, status,
		 county, address, municipality, start_date, end_date, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, site := range sites {
		res, err := stmt.ExecContext(ctx,
			site.BRRTSNumber, site.DetailSeqNo, site.ActivityName,
			site.ActivityType, site.Status, site.County, site.Address,
			site.Municipality, site.StartDate, site.EndDate, site.SourceURL)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// UnscrapedSites returns sites whose documents have not been harvested
// yet. Sites without a detail sequence number cannot be relayed and are
// excluded.
func (s *Store) UnscrapedSites(ctx context.Context, limit int) ([]models.Site, error) {
	return s.sitesByDocState(ctx, DocsPending, limit)
}

// FailedSites returns sites whose last harvest attempt failed.
func (s *Store) FailedSites(ctx context.Context, limit int) ([]models.Site, error) {
	return s.sitesByDocState(ctx, DocsFailed, limit)
}

func (s *Store) sitesByDocState(ctx context.Context, state, limit int) ([]models.Site, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT brrts_number, detail_seq_no,
		activity_name, activity_type, status, county
		FROM sites
		WHERE docs_scraped = ? AND detail_seq_no IS NOT NULL AND detail_seq_no != ''
		ORDER BY brrts_number LIMIT ?`, state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.BRRTSNumber, &site.DetailSeqNo,
			&site.ActivityName, &site.ActivityType, &site.Status, &site.County); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// KnownBRRTSNumbers returns the set of BRRTS numbers already stored,
// used by the list scraper to skip rows it has seen.
func (s *Store) KnownBRRTSNumbers(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT brrts_number FROM sites`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		known[n] = true
	}
	return known, rows.Err()
}

// MarkDocsScraped records the harvest outcome for one site.
func (s *Store) MarkDocsScraped(ctx context.Context, brrtsNumber string, state int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sites SET docs_scraped = ? WHERE brrts_number = ?`, state, brrtsNumber)
	return err
}

// ResetFailed flips failed sites back to pending so they can be retried.
// Returns how many rows were reset.
func (s *Store) ResetFailed(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sites SET docs_scraped = ? WHERE docs_scraped = ?`, DocsPending, DocsFailed)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// InsertDocuments stores harvested documents for a site. Duplicate
// (brrts_number, doc_seq_no) pairs are ignored.
func (s *Store) InsertDocuments(ctx context.Context, brrtsNumber, dsn string, docs []models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO documents
		(brrts_number, detail_seq_no, doc_seq_no, title, document_date, document_type, document_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, brrtsNumber, dsn,
			d.DocSeqNo, d.Title, d.DocumentDate, d.DocumentType, d.DocumentURL); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LogScrape appends a row to the scrape log.
func (s *Store) LogScrape(ctx context.Context, phase, status, detail string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_log (phase, status, detail, count) VALUES (?, ?, ?, ?)`,
		phase, status, detail, count)
	return err
}

// Progress summarizes document-harvest state across all sites.
type Progress struct {
	Total          int
	Scraped        int
	Failed         int
	Pending        int
	TotalDocuments int
	SitesWithDocs  int
}

// DocProgress reports harvest progress counts.
func (s *Store) DocProgress(ctx context.Context) (*Progress, error) {
	p := &Progress{}
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(docs_scraped = 1), 0),
		COALESCE(SUM(docs_scraped = -1), 0),
		COALESCE(SUM(docs_scraped = 0), 0)
		FROM sites`).Scan(&p.Total, &p.Scraped, &p.Failed, &p.Pending)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT
		COUNT(*), COUNT(DISTINCT brrts_number) FROM documents`).
		Scan(&p.TotalDocuments, &p.SitesWithDocs)
	if err != nil {
		return nil, err
	}
	return p, nil
}
