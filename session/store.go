package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists session records in a single SQLite database file.
type Store struct {
	dbPath string

	mu sync.Mutex
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create session db dir: %w", err)
	}

	s := &Store{dbPath: dbPath}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return err
	}

	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
  session_id TEXT PRIMARY KEY,
  project_paths TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  first_message TEXT NOT NULL DEFAULT '',
  messages TEXT NOT NULL DEFAULT '[]',
  token_usage TEXT NOT NULL DEFAULT '{}'
);`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	_, _ = db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);")

	return nil
}

func (s *Store) openDB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", s.dbPath+"?_pragma=busy_timeout%3d5000&_pragma=journal_mode%3dwal")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

// Save upserts a record keyed on its session id. CreatedAt is preserved on
// update; UpdatedAt is set to now when zero.
func (s *Store) Save(rec *Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("record has no session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	paths, err := json.Marshal(rec.ProjectPaths)
	if err != nil {
		return fmt.Errorf("encode project paths: %w", err)
	}
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	usage, err := json.Marshal(rec.TokenUsage)
	if err != nil {
		return fmt.Errorf("encode token usage: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO sessions(session_id, project_paths, created_at, updated_at, first_message, messages, token_usage)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   project_paths=excluded.project_paths,
		   updated_at=excluded.updated_at,
		   first_message=excluded.first_message,
		   messages=excluded.messages,
		   token_usage=excluded.token_usage`,
		rec.SessionID, string(paths),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.FirstMessage, string(messages), string(usage),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Load returns the record for id, or nil when no such session exists.
func (s *Store) Load(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return nil, err
	}

	row := db.QueryRow(
		`SELECT session_id, project_paths, created_at, updated_at, first_message, messages, token_usage
		 FROM sessions WHERE session_id = ?`, id)

	var rec Record
	var paths, createdAt, updatedAt, messages, usage string
	err = row.Scan(&rec.SessionID, &paths, &createdAt, &updatedAt, &rec.FirstMessage, &messages, &usage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	if err := decodeRow(&rec, paths, createdAt, updatedAt, messages, usage); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &rec, nil
}

func decodeRow(rec *Record, paths, createdAt, updatedAt, messages, usage string) error {
	if err := json.Unmarshal([]byte(paths), &rec.ProjectPaths); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(usage), &rec.TokenUsage); err != nil {
		return err
	}
	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return err
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	return err
}

// List returns session metadata newest-first. When filterPaths is non-empty
// only sessions sharing at least one project path are returned.
func (s *Store) List(filterPaths []string) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT session_id, project_paths, created_at, updated_at, first_message, messages
		 FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		var meta Metadata
		var paths, createdAt, updatedAt, messages string
		if err := rows.Scan(&meta.SessionID, &paths, &createdAt, &updatedAt, &meta.FirstMessage, &messages); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if err := json.Unmarshal([]byte(paths), &meta.ProjectPaths); err != nil {
			return nil, fmt.Errorf("decode project paths: %w", err)
		}
		var msgs []Message
		if err := json.Unmarshal([]byte(messages), &msgs); err == nil {
			meta.MessageCount = len(msgs)
		}
		meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		meta.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

		if len(filterPaths) > 0 && !sharesPath(meta.ProjectPaths, filterPaths) {
			continue
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func sharesPath(recorded, filter []string) bool {
	for _, r := range recorded {
		for _, f := range filter {
			if r == f {
				return true
			}
		}
	}
	return false
}

// Delete removes a session. Returns whether a row was deleted.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.openDB()
	if err != nil {
		return false, err
	}

	result, err := db.Exec("DELETE FROM sessions WHERE session_id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
