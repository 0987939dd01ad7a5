package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists audit events to a local SQLite database. The
// table is append-only by convention: no update or delete paths exist.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink wraps an opened database handle and ensures the schema.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteSink opens (or creates) the database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	return NewSQLiteSink(db)
}

func (s *SQLiteSink) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_events (
        id TEXT PRIMARY KEY,
        task_digest TEXT,
        query TEXT,
        status TEXT,
        confidence REAL,
        engines JSON,
        timestamp DATETIME
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteSink) Write(ctx context.Context, ev Event) error {
	engines, err := json.Marshal(ev.Engines)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO audit_events (id, task_digest, query, status, confidence, engines, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TaskDigest, ev.Query, ev.Status, ev.Confidence, string(engines), ev.Timestamp)
	return err
}

// Recent returns the newest events, for the operator inspection
// endpoint.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, task_digest, query, status, confidence, engines, timestamp
        FROM audit_events
        ORDER BY timestamp DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var ev Event
		var engines string
		if err := rows.Scan(&ev.ID, &ev.TaskDigest, &ev.Query, &ev.Status, &ev.Confidence, &engines, &ev.Timestamp); err != nil {
			return nil, err
		}
		if engines != "" {
			if err := json.Unmarshal([]byte(engines), &ev.Engines); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
