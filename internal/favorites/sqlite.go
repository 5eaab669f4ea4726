package favorites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justyntemme/duopane/internal/debug"
	"github.com/justyntemme/duopane/internal/model"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists favorites and small key/value settings in SQLite.
type SQLiteStore struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared between calls.
	db.SetMaxOpenConns(1)

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS favorites (
		backend_id    TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		added_at      INTEGER NOT NULL,
		PRIMARY KEY (backend_id, relative_path)
	);
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	debug.Log(debug.STORE, "opened favorites database %s", dbPath)
	return &SQLiteStore{conn: db, now: time.Now}, nil
}

// Favorites implements Store, oldest first.
func (s *SQLiteStore) Favorites(ctx context.Context) ([]model.FavoriteRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT backend_id, relative_path, added_at FROM favorites ORDER BY added_at ASC, backend_id, relative_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favs []model.FavoriteRecord
	for rows.Next() {
		var rec model.FavoriteRecord
		if err := rows.Scan(&rec.BackendID, &rec.RelativePath, &rec.AddedAt); err != nil {
			return nil, err
		}
		favs = append(favs, rec)
	}
	return favs, rows.Err()
}

// Add stores a favorite for loc. Adding an existing favorite is a no-op.
func (s *SQLiteStore) Add(ctx context.Context, loc model.Location) error {
	if loc.Backend == "" || loc.Backend == model.FavoritesID {
		return fmt.Errorf("cannot favorite a location on %q", loc.Backend)
	}
	_, err := s.conn.ExecContext(ctx,
		"INSERT OR IGNORE INTO favorites (backend_id, relative_path, added_at) VALUES (?, ?, ?)",
		loc.Backend, loc.Path, s.now().UnixMilli())
	if err != nil {
		debug.Error(debug.STORE, "add favorite %s: %v", loc, err)
	}
	return err
}

// Remove deletes the favorite for loc if present.
func (s *SQLiteStore) Remove(ctx context.Context, loc model.Location) error {
	_, err := s.conn.ExecContext(ctx,
		"DELETE FROM favorites WHERE backend_id = ? AND relative_path = ?", loc.Backend, loc.Path)
	if err != nil {
		debug.Error(debug.STORE, "remove favorite %s: %v", loc, err)
	}
	return err
}

// Setting returns the stored value for key, or "" when unset.
func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SaveSetting upserts key.
func (s *SQLiteStore) SaveSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
