// Package history keeps the queries typed into each channel in a small
// SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one remembered query.
type Entry struct {
	Channel  string
	Query    string
	UseCount int
	LastUsed time.Time
}

// Store records queries per channel.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	// lastStamp keeps last_used strictly increasing within this process so
	// two queries recorded in the same clock tick still order correctly.
	lastStamp int64

	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened history", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record remembers query for channel, bumping its use count when it is
// already known. Blank queries are ignored.
func (s *Store) Record(channel, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixNano()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp

	_, err := s.db.Exec(`
		INSERT INTO queries (channel, query, use_count, last_used)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(channel, query) DO UPDATE SET
			use_count = use_count + 1,
			last_used = excluded.last_used
	`, channel, query, stamp)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// Recent returns up to limit queries, most recently used first. An empty
// channel lists every channel.
func (s *Store) Recent(channel string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rows *sql.Rows
		err  error
	)
	if channel == "" {
		rows, err = s.db.Query(`
			SELECT channel, query, use_count, last_used FROM queries
			ORDER BY last_used DESC, id DESC LIMIT ?
		`, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT channel, query, use_count, last_used FROM queries
			WHERE channel = ?
			ORDER BY last_used DESC, id DESC LIMIT ?
		`, channel, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var lastUsed int64
		if err := rows.Scan(&e.Channel, &e.Query, &e.UseCount, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		e.LastUsed = time.Unix(0, lastUsed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear forgets the queries of channel, or of every channel when channel is
// empty. It returns how many were removed.
func (s *Store) Clear(channel string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result sql.Result
		err    error
	)
	if channel == "" {
		result, err = s.db.Exec("DELETE FROM queries")
	} else {
		result, err = s.db.Exec("DELETE FROM queries WHERE channel = ?", channel)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return result.RowsAffected()
}
