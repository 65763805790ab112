package graph

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"
)

// Store wraps the SQLite database holding the knowledge graph
type Store struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Open opens or creates the knowledge graph database
func Open(statePath string, cfg Config) (*Store, error) {
	dbPath := filepath.Join(statePath, "system", "knowledge.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath, cfg: cfg}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection so sibling stores (corrections) can
// share the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate creates the schema. The name column carries the uniqueness
// constraint that makes UpsertNode an atomic merge; it collates NOCASE so
// case variants of one concept merge instead of colliding on the id, which
// hashes the lowercased name. The ordered (source_id, target_id) pair does
// the same for UpsertEdge.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE UNIQUE,
		category TEXT NOT NULL DEFAULT 'Concept',
		digest TEXT NOT NULL DEFAULT '',
		weight REAL NOT NULL DEFAULT 1.0,
		document_ids TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
	CREATE INDEX IF NOT EXISTS idx_nodes_category ON nodes(category);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relation TEXT NOT NULL DEFAULT 'related_to',
		weight REAL NOT NULL DEFAULT 1.0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES nodes(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Stats returns row counts per table
func (s *Store) Stats() (map[string]int, error) {
	stats := make(map[string]int)

	for _, table := range []string{"nodes", "edges"} {
		var count int
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			return nil, err
		}
		stats[table] = count
	}

	return stats, nil
}

// Clear removes all graph data (for testing/reset)
func (s *Store) Clear() error {
	for _, table := range []string{"edges", "nodes"} {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// nodeID derives a stable node ID from the concept name
func nodeID(name string) string {
	hash := blake3.Sum256([]byte(strings.ToLower(name)))
	return "node-" + hex.EncodeToString(hash[:8])
}
