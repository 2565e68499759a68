// Package cache implements a translation memory: translations already
// received from a provider are kept in a local SQLite database and served
// from there on later runs.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/minios-linux/loxml/translate"
)

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	source_lang TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	source      TEXT NOT NULL,
	translated  TEXT NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (source_lang, target_lang, source)
)`

// Store is an in-memory map in front of a SQLite table.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	memory map[string]string // key(from, to, source) -> translated
}

func key(from, to, source string) string {
	return from + "\x00" + to + "\x00" + source
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	// One connection keeps pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Translation cache opened")
	return &Store{db: db, memory: make(map[string]string)}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached translation of source from one language to another.
func (s *Store) Get(ctx context.Context, from, to, source string) (string, bool, error) {
	k := key(from, to, source)

	s.mu.RLock()
	if v, ok := s.memory[k]; ok {
		s.mu.RUnlock()
		return v, true, nil
	}
	s.mu.RUnlock()

	var translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT translated FROM translations WHERE source_lang = ? AND target_lang = ? AND source = ?`,
		from, to, source).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}

	s.mu.Lock()
	s.memory[k] = translated
	s.mu.Unlock()
	return translated, true, nil
}

// SetBatch stores records for one language pair in a single transaction.
func (s *Store) SetBatch(ctx context.Context, from, to string, records []translate.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO translations (source_lang, target_lang, source, translated, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_lang, target_lang, source)
		DO UPDATE SET translated = excluded.translated, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, from, to, r.Source, r.Translated, now); err != nil {
			return fmt.Errorf("cache set: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	s.mu.Lock()
	for _, r := range records {
		s.memory[key(from, to, r.Source)] = r.Translated
	}
	s.mu.Unlock()
	return nil
}

// Preload loads every cached translation into memory.
func (s *Store) Preload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT source_lang, target_lang, source, translated FROM translations`)
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for rows.Next() {
		var from, to, source, translated string
		if err := rows.Scan(&from, &to, &source, &translated); err != nil {
			return fmt.Errorf("preload cache: %w", err)
		}
		s.memory[key(from, to, source)] = translated
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	log.Debug().Int("count", n).Msg("Preloaded translation cache")
	return nil
}

// Len returns the number of stored translations.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}
