// Package state persists client state across reloads: the session registry,
// the last layout snapshot, and the docked panel geometry.
//
// Storage is a single sqlite file. The registry is a real ordered table;
// snapshots and panel state live in a key-value table, with snapshot
// payloads gzip-compressed since scrollback-heavy layouts serialize large.
package state

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite"

	"github.com/danilokhury/termdock/internal/shared/types"
)

// ErrNotFound is returned when a requested key has never been stored.
var ErrNotFound = errors.New("state: not found")

const (
	keySnapshot = "layout_snapshot"
	keyPanel    = "docked_panel"
)

// Store is the sqlite-backed persisted client state.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the state database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS registry(
	position INTEGER NOT NULL,
	id       TEXT PRIMARY KEY,
	profile  TEXT NOT NULL,
	label    TEXT NOT NULL,
	pinned   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS kv(
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("migrate state schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRegistry replaces the persisted registry with entries, in order.
func (s *Store) SaveRegistry(ctx context.Context, entries []types.RegistryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM registry`); err != nil {
		return fmt.Errorf("clear registry: %w", err)
	}
	for i, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO registry(position, id, profile, label, pinned) VALUES (?, ?, ?, ?, ?)`,
			i, e.ID, string(e.Profile), e.Label, boolToInt(e.Pinned))
		if err != nil {
			return fmt.Errorf("insert registry entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry save: %w", err)
	}
	return nil
}

// LoadRegistry returns the persisted registry in saved order. An empty
// database yields an empty slice, not an error.
func (s *Store) LoadRegistry(ctx context.Context) ([]types.RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile, label, pinned FROM registry ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer rows.Close()

	var entries []types.RegistryEntry
	for rows.Next() {
		var e types.RegistryEntry
		var profile string
		var pinned int
		if err := rows.Scan(&e.ID, &profile, &e.Label, &pinned); err != nil {
			return nil, fmt.Errorf("scan registry entry: %w", err)
		}
		e.Profile = types.Profile(profile)
		e.Pinned = pinned != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveSnapshot persists the last layout snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *types.LayoutSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	return s.putKV(ctx, keySnapshot, buf.Bytes())
}

// LoadSnapshot returns the last persisted layout snapshot, or ErrNotFound.
func (s *Store) LoadSnapshot(ctx context.Context) (*types.LayoutSnapshot, error) {
	blob, err := s.getKV(ctx, keySnapshot)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap types.LayoutSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// ClearSnapshot removes the persisted snapshot, if any.
func (s *Store) ClearSnapshot(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, keySnapshot)
	if err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

type panelState struct {
	Height  int  `json:"height"`
	Visible bool `json:"visible"`
}

// SavePanel persists docked-panel height and visibility.
func (s *Store) SavePanel(ctx context.Context, height int, visible bool) error {
	raw, err := json.Marshal(panelState{Height: height, Visible: visible})
	if err != nil {
		return fmt.Errorf("marshal panel state: %w", err)
	}
	return s.putKV(ctx, keyPanel, raw)
}

// LoadPanel returns persisted docked-panel state, or ErrNotFound.
func (s *Store) LoadPanel(ctx context.Context) (height int, visible bool, err error) {
	blob, err := s.getKV(ctx, keyPanel)
	if err != nil {
		return 0, false, err
	}
	var p panelState
	if err := json.Unmarshal(blob, &p); err != nil {
		return 0, false, fmt.Errorf("unmarshal panel state: %w", err)
	}
	return p.Height, p.Visible, nil
}

func (s *Store) putKV(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv(key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value
`, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) getKV(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
