package outcomes

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

const outcomesSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	at             TEXT    NOT NULL,
	attempt_id     TEXT    NOT NULL,
	identity       TEXT    NOT NULL,
	user           TEXT    NOT NULL,
	date           TEXT    NOT NULL,
	class          TEXT    NOT NULL,
	status         TEXT    NOT NULL,
	reason         TEXT,
	seats_remaining INTEGER,
	attempts       INTEGER NOT NULL,
	err            TEXT
);
CREATE INDEX IF NOT EXISTS idx_outcomes_date ON outcomes(date);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg config.OutcomesConfig, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("outcomes.path is required for sqlite driver")
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
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(outcomesSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Append(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return errors.New("outcomes store closed")
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes(at, attempt_id, identity, user, date, class, status, reason, seats_remaining, attempts, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		rec.At.Format(time.RFC3339Nano), rec.AttemptID, rec.Identity, rec.User,
		rec.Date, rec.Class, rec.Status, nullStr(rec.Reason), rec.Seats, rec.Attempts, nullStr(rec.Error),
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
