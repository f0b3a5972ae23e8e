// Package postgres persists run events in PostgreSQL for analytics backends
// that outgrow the NDJSON file.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gnce/internal/runlog"
)

// Store writes run events through a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open run-event db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping run-event db: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the run_events table if missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS run_events (
			event_id         TEXT PRIMARY KEY,
			ts_utc           TEXT NOT NULL,
			session_id       TEXT NOT NULL DEFAULT '',
			adra_id          TEXT NOT NULL,
			decision         TEXT NOT NULL,
			severity         TEXT NOT NULL,
			regime           TEXT NOT NULL,
			drift_outcome    TEXT NOT NULL,
			veto_category    TEXT NOT NULL,
			violations_count INT NOT NULL,
			checksum_sha256  TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate run_events table: %w", err)
	}
	return nil
}

// Append inserts one run event.
func (s *Store) Append(ctx context.Context, ev runlog.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_events (
			event_id, ts_utc, session_id, adra_id, decision, severity,
			regime, drift_outcome, veto_category, violations_count, checksum_sha256
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ev.EventID, ev.TSUTC, ev.SessionID, ev.ADRAID, ev.Decision, ev.Severity,
		ev.Regime, ev.DriftOutcome, ev.VetoCategory, ev.ViolationsCount, ev.Checksum)
	if err != nil {
		return fmt.Errorf("append run event: %w", err)
	}
	return nil
}

// List returns all run events in timestamp order.
func (s *Store) List(ctx context.Context) ([]runlog.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, ts_utc, session_id, adra_id, decision, severity,
		       regime, drift_outcome, veto_category, violations_count, checksum_sha256
		FROM run_events
		ORDER BY ts_utc, event_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	var events []runlog.Event
	for rows.Next() {
		ev := runlog.Event{EventType: runlog.EventTypeRun, EventVersion: runlog.EventVersion}
		if err := rows.Scan(&ev.EventID, &ev.TSUTC, &ev.SessionID, &ev.ADRAID,
			&ev.Decision, &ev.Severity, &ev.Regime, &ev.DriftOutcome,
			&ev.VetoCategory, &ev.ViolationsCount, &ev.Checksum); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return events, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
