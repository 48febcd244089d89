// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// SQLite is the relational sink. Rows are keyed by the OpenAlex
// identifier; replaying a record overwrites all non-key columns, so
// repeated runs over the same scope converge to one row per entity.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens or creates the database at dbPath and ensures the
// schema exists.
func OpenSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS authors (
			id TEXT PRIMARY KEY,
			name TEXT,
			works_count INTEGER,
			cited_by_count INTEGER,
			affiliations TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			id TEXT PRIMARY KEY,
			title TEXT,
			doi TEXT,
			publication_year INTEGER,
			pdf_url TEXT,
			authors TEXT,
			abstract TEXT,
			author_id TEXT,
			processing TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_author_id ON publications(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_year ON publications(publication_year)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT,
			summary TEXT,
			finished_at TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// UpsertAuthor inserts or replaces the author row keyed by ID.
func (s *SQLite) UpsertAuthor(author types.Author) error {
	affiliationsJSON, _ := json.Marshal(author.Affiliations)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO authors (id, name, works_count, cited_by_count, affiliations)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, works_count=excluded.works_count,
			cited_by_count=excluded.cited_by_count, affiliations=excluded.affiliations`,
		author.ID, author.Name, author.WorksCount, author.CitedByCount, string(affiliationsJSON),
	)
	if err != nil {
		return &PersistenceError{Op: "upsert author " + author.ID, Err: err}
	}
	return nil
}

// UpsertPublication inserts or replaces the publication row keyed by ID.
// The processing annotation is stored as a JSON column beside the
// bibliographic fields.
func (s *SQLite) UpsertPublication(pub types.Publication) error {
	authorsJSON, _ := json.Marshal(pub.Authors)
	var processingJSON []byte
	if pub.Processing != nil {
		processingJSON, _ = json.Marshal(pub.Processing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO publications (id, title, doi, publication_year, pdf_url, authors, abstract, author_id, processing)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, doi=excluded.doi,
			publication_year=excluded.publication_year, pdf_url=excluded.pdf_url,
			authors=excluded.authors, abstract=excluded.abstract,
			author_id=excluded.author_id, processing=excluded.processing`,
		pub.ID, pub.Title, pub.DOI, pub.Year, pub.PDFURL,
		string(authorsJSON), pub.Abstract, pub.AuthorID, string(processingJSON),
	)
	if err != nil {
		return &PersistenceError{Op: "upsert publication " + pub.ID, Err: err}
	}
	return nil
}

// Close records the run summary in the runs table and releases the
// database connection.
func (s *SQLite) Close(summary types.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaryJSON, _ := json.Marshal(summary)
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, status, summary, finished_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status=excluded.status, summary=excluded.summary, finished_at=excluded.finished_at`,
		summary.RunID, string(summary.Status), string(summaryJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	closeErr := s.db.Close()
	if err != nil {
		return &PersistenceError{Op: "record run " + summary.RunID, Err: err}
	}
	if closeErr != nil {
		return &PersistenceError{Op: "close database", Err: closeErr}
	}
	return nil
}
