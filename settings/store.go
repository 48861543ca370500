// Package settings persists user alerting preferences to SQLite, one record
// per authenticated profile.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

// ErrStoreClosed indicates the store was used after Close.
var ErrStoreClosed = errors.New("settings store closed")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings (
	profile    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store loads and persists Settings for a single profile. All mutation goes
// through Update; every Update persists the full merged record before
// returning. Updates are last-writer-wins.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	profile  string
	current  types.Settings
	onChange []func(types.Settings)
	closed   bool
}

// NewStore opens (or creates) the SQLite database at dbPath and loads the
// settings row for profile, falling back to defaults when no row exists or
// the stored payload fails to parse.
func NewStore(dbPath, profile string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("settings store: db path cannot be empty")
	}
	if profile == "" {
		profile = "default"
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("settings store: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("settings store: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settings store: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settings store: create schema: %w", err)
	}

	s := &Store{db: db, profile: profile}
	s.current = s.load()
	return s, nil
}

func (s *Store) load() types.Settings {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM settings WHERE profile = ?", s.profile).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			tool.DefaultLogger.Warnf("[Settings] Failed to load profile %q: %v", s.profile, err)
		}
		return types.DefaultSettings()
	}
	var st types.Settings
	if err := sonic.UnmarshalString(payload, &st); err != nil {
		tool.DefaultLogger.Warnf("[Settings] Stored settings for %q unreadable, using defaults: %v", s.profile, err)
		return types.DefaultSettings()
	}
	return st.Normalize()
}

// Get returns the current in-memory settings.
func (s *Store) Get() types.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update merges the patch into the current settings, persists the full merged
// record, and invokes change callbacks with the new values. Already-dispatched
// alerts are unaffected.
func (s *Store) Update(patch types.SettingsPatch) (types.Settings, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.Settings{}, ErrStoreClosed
	}

	merged := patch.Apply(s.current).Normalize()
	payload, err := sonic.MarshalString(merged)
	if err != nil {
		s.mu.Unlock()
		return s.current, fmt.Errorf("settings store: encode: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (profile, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.profile, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		s.mu.Unlock()
		return s.current, fmt.Errorf("settings store: persist: %w", err)
	}
	s.current = merged
	callbacks := append([]func(types.Settings){}, s.onChange...)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(merged)
	}
	return merged, nil
}

// OnChange registers a callback invoked after every successful Update.
func (s *Store) OnChange(cb func(types.Settings)) {
	if cb == nil {
		return
	}
	s.mu.Lock()
	s.onChange = append(s.onChange, cb)
	s.mu.Unlock()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
