package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/quartz"

	_ "modernc.org/sqlite"
)

// SQLiteSink appends records to a local SQLite database.
type SQLiteSink struct {
	db    *sql.DB
	clock quartz.Clock
}

// NewSQLiteSink opens (creating if needed) the database at path. ":memory:"
// is accepted for tests. A nil clock uses the wall clock.
func NewSQLiteSink(ctx context.Context, path string, clock quartz.Clock) (*SQLiteSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	if clock == nil {
		clock = quartz.NewReal()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db, clock: clock}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{`
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    game_id TEXT NOT NULL,
    turn INTEGER NOT NULL,
    strategy TEXT NOT NULL,
    decision TEXT NOT NULL,
    record_json TEXT NOT NULL,
    created_at_us INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_game ON decisions (game_id, created_at_us)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure decisions schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	rec = stamp(rec, s.clock.Now())
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO decisions (id, game_id, turn, strategy, decision, record_json, created_at_us)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, rec.ID, rec.GameID, rec.Turn, rec.Strategy, rec.Decision, string(raw), rec.Timestamp.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert decision record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty gameID matches
// every game.
func (s *SQLiteSink) Recent(ctx context.Context, gameID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT record_json FROM decisions`
	args := []any{}
	if gameID != "" {
		query += ` WHERE game_id = ?`
		args = append(args, gameID)
	}
	query += ` ORDER BY created_at_us DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode decision %q: %w", raw, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
