package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

// Storage is a wrapper around a SQLite database that persists mind-map
// documents and small settings values (vault material, rate-limit windows).
type Storage struct {
	db *sql.DB
}

// ============================= LIFECYCLE ==================================

// New opens (or creates) the SQLite database at dbPath, applies the
// recommended PRAGMAs, runs any pending migrations and returns a ready
// *Storage.
func New(dbPath string) (*Storage, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open db %q: %w", dbPath, err)
	}

	// Only one writer at a time for SQLite.
	conn.SetMaxOpenConns(1)

	// Apply PRAGMAs.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("storage: set pragma %q: %w", p, err)
		}
	}

	s := &Storage{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// ============================ MIGRATIONS ==================================

// migrate ensures the schema_migrations table exists, then applies every
// unapplied Migration from the package-level Migrations slice.
func (s *Storage) migrate() error {
	// Guarantee the migrations tracking table is present.
	const createMigTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`
	if _, err := s.db.Exec(createMigTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration v%d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// ============================ SETTINGS ====================================

// Settings exposes the settings table as a kv.Store.
func (s *Storage) Settings() *SettingsStore {
	return &SettingsStore{db: s.db}
}

// SettingsStore implements kv.Store over the settings table.
type SettingsStore struct {
	db *sql.DB
}

// Get returns the value for key and whether it was present.
func (ss *SettingsStore) Get(key string) (string, bool, error) {
	var value string
	err := ss.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any prior value.
func (ss *SettingsStore) Set(key, value string) error {
	_, err := ss.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage: set setting %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (ss *SettingsStore) Delete(key string) error {
	if _, err := ss.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("storage: delete setting %q: %w", key, err)
	}
	return nil
}

// =========================== SAVED MAPS ===================================

// SavedMap is one persisted mind-map document.
type SavedMap struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document,omitempty"`
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SaveMap inserts a new saved map and returns it with its generated id.
func (s *Storage) SaveMap(ctx context.Context, name string, document json.RawMessage, nodeCount, edgeCount int) (SavedMap, error) {
	m := SavedMap{
		ID:        uuid.New().String(),
		Name:      name,
		Document:  document,
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_maps (id, name, document, node_count, edge_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, string(m.Document), m.NodeCount, m.EdgeCount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return SavedMap{}, fmt.Errorf("storage: save map %q: %w", name, err)
	}
	return m, nil
}

// UpdateMap replaces the document (and optionally the name) of an existing
// saved map. An empty name keeps the stored one.
func (s *Storage) UpdateMap(ctx context.Context, id, name string, document json.RawMessage, nodeCount, edgeCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE saved_maps
		SET name = CASE WHEN ? = '' THEN name ELSE ? END,
		    document = ?, node_count = ?, edge_count = ?, updated_at = ?
		WHERE id = ?`,
		name, name, string(document), nodeCount, edgeCount, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage: update map %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update map %q: %w", id, err)
	}
	if n == 0 {
		return ErrMapNotFound
	}
	return nil
}

// ErrMapNotFound is returned when a saved map id does not exist.
var ErrMapNotFound = fmt.Errorf("storage: map not found")

// GetMap returns a saved map including its document.
func (s *Storage) GetMap(ctx context.Context, id string) (SavedMap, error) {
	var m SavedMap
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, document, node_count, edge_count, created_at, updated_at
		FROM saved_maps WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &doc, &m.NodeCount, &m.EdgeCount, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return SavedMap{}, ErrMapNotFound
	}
	if err != nil {
		return SavedMap{}, fmt.Errorf("storage: get map %q: %w", id, err)
	}
	m.Document = json.RawMessage(doc)
	return m, nil
}

// ListMaps returns all saved maps without their documents, most recently
// updated first.
func (s *Storage) ListMaps(ctx context.Context) ([]SavedMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, node_count, edge_count, created_at, updated_at
		FROM saved_maps ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list maps: %w", err)
	}
	defer rows.Close()

	maps := make([]SavedMap, 0)
	for rows.Next() {
		var m SavedMap
		if err := rows.Scan(&m.ID, &m.Name, &m.NodeCount, &m.EdgeCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan map row: %w", err)
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// DeleteMap removes a saved map. Deleting a missing id is not an error.
func (s *Storage) DeleteMap(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM saved_maps WHERE id = ?", id); err != nil {
		return fmt.Errorf("storage: delete map %q: %w", id, err)
	}
	return nil
}
