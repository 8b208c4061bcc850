package storage

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

	logx "lapsecam/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
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

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendCapture(ctx context.Context, r CaptureRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures(at, path, bytes, quality, took_ms) VALUES(?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.Path, r.Bytes, nullStr(r.Quality), r.TookMS,
	)
	return err
}

func (s *sqliteStore) LastCapture(ctx context.Context) (CaptureRecord, bool, error) {
	if s == nil || s.db == nil {
		return CaptureRecord{}, false, ErrDisabled
	}
	var (
		at      string
		quality sql.NullString
		r       CaptureRecord
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT at, path, bytes, quality, took_ms FROM captures ORDER BY id DESC LIMIT 1`,
	).Scan(&at, &r.Path, &r.Bytes, &quality, &r.TookMS)
	if errors.Is(err, sql.ErrNoRows) {
		return CaptureRecord{}, false, nil
	}
	if err != nil {
		return CaptureRecord{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return CaptureRecord{}, false, err
	}
	r.At = t
	r.Quality = quality.String
	return r, true, nil
}

func (s *sqliteStore) CountSince(ctx context.Context, t time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	var n int64
	var err error
	if t.IsZero() {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captures`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM captures WHERE at >= ?`,
			t.UTC().Format(time.RFC3339Nano),
		).Scan(&n)
	}
	return n, err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
