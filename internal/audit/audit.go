// Package audit keeps a full log of webhook deliveries in SQLite, beyond the
// bounded rolling history. It is optional: a nil *Log is a safe no-op, and
// every failure here is recoverable (the webhook ack never depends on it).
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"meditbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Entry records one webhook delivery.
type Entry struct {
	At          time.Time
	Shape       string
	CaseName    string
	PatientName string
	OccurredAt  string
	Payload     string
}

// Summary aggregates deliveries since a cutoff, for the daily digest.
type Summary struct {
	Total    int
	ByShape  map[string]int
	LastCase string
	LastAt   time.Time
}

type Log struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the audit database. It returns (nil, nil) when no path is
// configured; the nil *Log is usable everywhere.
func Open(cfg Config, log logx.Logger) (*Log, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	l := &Log{db: db, log: log}
	if err := l.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, string(b))
	return err
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Log) Append(ctx context.Context, e Entry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, shape, case_name, patient_name, occurred_at, payload)
		 VALUES(?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Shape,
		nullStr(e.CaseName), nullStr(e.PatientName), nullStr(e.OccurredAt), nullStr(e.Payload),
	)
	return err
}

// Summarize aggregates deliveries with at >= since.
func (l *Log) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	sum := Summary{ByShape: map[string]int{}}
	if l == nil || l.db == nil {
		return sum, errors.New("audit log disabled")
	}
	cutoff := since.UTC().Format(time.RFC3339Nano)

	rows, err := l.db.QueryContext(ctx,
		`SELECT shape, COUNT(*) FROM deliveries WHERE at >= ? GROUP BY shape`, cutoff)
	if err != nil {
		return sum, err
	}
	defer rows.Close()
	for rows.Next() {
		var shape string
		var n int
		if err := rows.Scan(&shape, &n); err != nil {
			return sum, err
		}
		sum.ByShape[shape] = n
		sum.Total += n
	}
	if err := rows.Err(); err != nil {
		return sum, err
	}

	var lastCase sql.NullString
	var lastAt sql.NullString
	err = l.db.QueryRowContext(ctx,
		`SELECT case_name, at FROM deliveries
		 WHERE at >= ? AND case_name IS NOT NULL
		 ORDER BY at DESC LIMIT 1`, cutoff).Scan(&lastCase, &lastAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return sum, err
	}
	if lastCase.Valid {
		sum.LastCase = lastCase.String
	}
	if lastAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, lastAt.String); perr == nil {
			sum.LastAt = t
		}
	}
	return sum, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
