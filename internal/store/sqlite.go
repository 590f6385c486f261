package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/referral-os/directory/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS imports (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	dataset      TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	record_count INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	imported_by  TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	duration_ms  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_imports_started_at ON imports(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartImport(ctx context.Context, rec *model.ImportRecord) error {
	rec.ID = uuid.New().String()
	rec.Status = model.ImportStatusRunning
	rec.StartedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imports (id, filename, dataset, state, category, status, imported_by, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.Dataset, rec.State, rec.Category, string(rec.Status), rec.ImportedBy, rec.StartedAt,
	)
	return eris.Wrap(err, "sqlite: start import")
}

func (s *SQLiteStore) CompleteImport(ctx context.Context, id string, count int, elapsed time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE imports SET status = ?, record_count = ?, duration_ms = ? WHERE id = ?`,
		string(model.ImportStatusCompleted), count, elapsed.Milliseconds(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete import")
	}
	return checkRowsAffected(res, "import", id)
}

func (s *SQLiteStore) FailImport(ctx context.Context, id string, cause error, elapsed time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE imports SET status = ?, error = ?, duration_ms = ? WHERE id = ?`,
		string(model.ImportStatusFailed), errorText(cause), elapsed.Milliseconds(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: fail import")
	}
	return checkRowsAffected(res, "import", id)
}

func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]model.ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, dataset, state, category, status, record_count, error, imported_by, started_at, duration_ms
		 FROM imports ORDER BY started_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list imports")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.ImportRecord{}
	for rows.Next() {
		var (
			rec    model.ImportRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Dataset, &rec.State, &rec.Category, &status,
			&rec.RecordCount, &rec.Error, &rec.ImportedBy, &rec.StartedAt, &rec.DurationMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import")
		}
		rec.Status = model.ImportStatus(status)
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list imports iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
