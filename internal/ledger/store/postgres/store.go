// Package postgres persists ledger records in PostgreSQL. The table is
// append-only; rows are never updated or deleted.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"gnce/internal/ledger"
)

// Store implements ledger.Store on database/sql.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pq driver and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the ledger table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_records (
			seq        BIGSERIAL PRIMARY KEY,
			ts         TEXT NOT NULL,
			artifact   JSONB NOT NULL,
			prev_hash  TEXT NOT NULL,
			hash       TEXT NOT NULL UNIQUE
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate ledger table: %w", err)
	}
	return nil
}

// Append inserts one chain record.
func (s *Store) Append(ctx context.Context, rec ledger.Record) error {
	artifact, err := json.Marshal(rec.Artifact)
	if err != nil {
		return fmt.Errorf("encode ledger artifact: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_records (ts, artifact, prev_hash, hash)
		VALUES ($1, $2, $3, $4)
	`, rec.Timestamp, artifact, rec.PrevHash, rec.Hash)
	if err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	return nil
}

// Load reads the full chain in append order, for verification after restart.
func (s *Store) Load(ctx context.Context) ([]ledger.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, artifact, prev_hash, hash
		FROM ledger_records
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("load ledger records: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		var artifact []byte
		if err := rows.Scan(&rec.Timestamp, &artifact, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		if err := json.Unmarshal(artifact, &rec.Artifact); err != nil {
			return nil, fmt.Errorf("decode ledger artifact: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return records, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}
