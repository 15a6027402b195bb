// Package store is the on-disk article archive. Every fresh fetch is written
// through to it so past windows stay inspectable via the prune/stats
// commands; the pipeline itself reads only from the in-memory caches.
package store

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matheuskafuri/hrnews/internal/feed"
)

type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// Archived is one archive row.
type Archived struct {
	ID          string
	Topic       string
	Source      string
	Title       string
	URL         string
	Description string
	Published   time.Time
	FetchedAt   time.Time
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{readDB: readDB, writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			id          TEXT PRIMARY KEY,
			topic       TEXT NOT NULL,
			source      TEXT NOT NULL,
			title       TEXT NOT NULL,
			url         TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			published   DATETIME NOT NULL,
			fetched_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published DESC);
		CREATE INDEX IF NOT EXISTS idx_articles_topic ON articles(topic);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// articleID derives a stable row id from the topic and article URL, so the
// same URL surfacing under two topics archives twice but refetching a day is
// idempotent.
func articleID(topic, url string) string {
	h := sha256.Sum256([]byte(topic + "\x00" + url))
	return fmt.Sprintf("%x", h[:16])
}

// Upsert archives a fetch result for the topic.
func (s *Store) Upsert(topic string, articles []feed.Article) error {
	tx, err := s.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO articles (id, topic, source, title, url, description, published, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range articles {
		_, err := stmt.Exec(articleID(topic, a.URL), topic, a.Source.Name, a.Title, a.URL, a.Description, a.PublishedAt, now)
		if err != nil {
			return fmt.Errorf("archiving article %q: %w", a.Title, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit archived articles for the topic, newest first.
// An empty topic returns rows across all topics.
func (s *Store) Recent(topic string, limit int) ([]Archived, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, topic, source, title, url, description, published, fetched_at FROM articles"
	var args []interface{}
	if topic != "" {
		query += " WHERE topic = ?"
		args = append(args, topic)
	}
	query += fmt.Sprintf(" ORDER BY published DESC LIMIT %d", limit)

	rows, err := s.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var out []Archived
	for rows.Next() {
		var a Archived
		if err := rows.Scan(&a.ID, &a.Topic, &a.Source, &a.Title, &a.URL, &a.Description, &a.Published, &a.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Prune deletes archived articles fetched before the retention cutoff and
// reports how many were removed.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.writeDB.Exec("DELETE FROM articles WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats reports the archived article count and database file size.
func (s *Store) Stats(dbPath string) (count int64, size int64, err error) {
	if err := s.readDB.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, err
	}
	return count, info.Size(), nil
}
