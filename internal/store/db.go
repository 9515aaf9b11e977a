// Package store implements the knowledge, edge, and meta-state collaborators
// on SQLite. One process owns the database; WAL mode keeps readers cheap.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avint/metaloom/internal/kb"
)

// DB wraps the SQLite database for records, edges, and engine meta-state
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the knowledge database under statePath
func Open(statePath string) (*DB, error) {
	dbPath := filepath.Join(statePath, "system", "metaloom.db")

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

	s := &DB{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

// migrate creates the schema and applies incremental migrations
func (s *DB) migrate() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Knowledge records
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		content TEXT NOT NULL,
		tags TEXT,
		invariants TEXT,
		claims TEXT,
		confidence REAL DEFAULT 0.5,
		metadata TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_tier ON records(tier);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);

	-- Directed typed edges. The (source, target, type) uniqueness makes
	-- CreateEdge idempotent under retry.
	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		weight REAL DEFAULT 1.0,
		provenance TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE(source_id, target_id, edge_type)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

	-- Committed meta-invariants
	CREATE TABLE IF NOT EXISTS meta_records (
		record_id TEXT PRIMARY KEY,
		source_domains TEXT,
		committed_at DATETIME NOT NULL
	);

	-- Ingested dream inputs
	CREATE TABLE IF NOT EXISTS dream_records (
		record_id TEXT PRIMARY KEY,
		raw_text TEXT NOT NULL,
		captured_at DATETIME NOT NULL,
		ingested_at DATETIME NOT NULL,
		convergence_checked INTEGER DEFAULT 0
	);

	-- Detected convergences, at most one per (dream, meta) pair
	CREATE TABLE IF NOT EXISTS convergences (
		id TEXT PRIMARY KEY,
		dream_record_id TEXT NOT NULL,
		meta_record_id TEXT NOT NULL,
		similarity REAL NOT NULL,
		dream_at DATETIME NOT NULL,
		meta_at DATETIME NOT NULL,
		discovered_at DATETIME NOT NULL,
		UNIQUE(dream_record_id, meta_record_id)
	);

	-- Unresolved predictions awaiting verification
	CREATE TABLE IF NOT EXISTS pending_predictions (
		id TEXT PRIMARY KEY,
		meta_record_id TEXT NOT NULL,
		prediction TEXT NOT NULL,
		predicted_domain TEXT NOT NULL,
		status TEXT DEFAULT 'pending',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_predictions(status);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Upsert inserts or replaces a record. Idempotent under retry.
func (s *DB) Upsert(r *kb.Record) error {
	if r.ID == "" {
		return fmt.Errorf("record id required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tags, _ := json.Marshal(r.Tags)
	invariants, _ := json.Marshal(r.Invariants)
	claims, _ := json.Marshal(r.Claims)
	metadata, _ := json.Marshal(r.Metadata)

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO records (id, tier, content, tags, invariants, claims, confidence, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Tier), r.Content, string(tags), string(invariants),
		string(claims), r.Confidence, string(metadata), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
	}
	return nil
}

// Record fetches a single record by id
func (s *DB) Record(id string) (*kb.Record, error) {
	row := s.db.QueryRow(`
		SELECT id, tier, content, tags, invariants, claims, confidence, metadata, created_at
		FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s not found", id)
	}
	return r, err
}

// Records returns all records
func (s *DB) Records() ([]*kb.Record, error) {
	rows, err := s.db.Query(`
		SELECT id, tier, content, tags, invariants, claims, confidence, metadata, created_at
		FROM records ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*kb.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// scanner abstracts sql.Row / sql.Rows for scanRecord
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*kb.Record, error) {
	var r kb.Record
	var tier string
	var tags, invariants, claims, metadata sql.NullString
	if err := sc.Scan(&r.ID, &tier, &r.Content, &tags, &invariants, &claims,
		&r.Confidence, &metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Tier = kb.Tier(tier)
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &r.Tags)
	}
	if invariants.Valid {
		json.Unmarshal([]byte(invariants.String), &r.Invariants)
	}
	if claims.Valid {
		json.Unmarshal([]byte(claims.String), &r.Claims)
	}
	if metadata.Valid {
		json.Unmarshal([]byte(metadata.String), &r.Metadata)
	}
	return &r, nil
}

// CreateEdge inserts an edge. A duplicate (source, target, type) is a no-op,
// so retries can't double-link.
func (s *DB) CreateEdge(e *kb.Edge) error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("edge endpoints required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	provenance, _ := json.Marshal(e.Provenance)

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO edges (id, source_id, target_id, edge_type, weight, provenance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceID, e.TargetID, string(e.Type), e.Weight, string(provenance), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create edge %s->%s: %w", e.SourceID, e.TargetID, err)
	}
	return nil
}

// Outgoing returns all edges leaving the given record
func (s *DB) Outgoing(sourceID string) ([]*kb.Edge, error) {
	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, edge_type, weight, provenance, created_at
		FROM edges WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*kb.Edge
	for rows.Next() {
		var e kb.Edge
		var edgeType string
		var provenance sql.NullString
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &edgeType,
			&e.Weight, &provenance, &e.CreatedAt); err != nil {
			continue
		}
		e.Type = kb.EdgeType(edgeType)
		if provenance.Valid {
			json.Unmarshal([]byte(provenance.String), &e.Provenance)
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// Stats returns row counts for observability
func (s *DB) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	tables := []string{"records", "edges", "meta_records", "dream_records", "convergences", "pending_predictions"}
	for _, table := range tables {
		var count int
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}
