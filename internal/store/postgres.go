package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/referral-os/directory/internal/db"
	"github.com/referral-os/directory/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS imports (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	filename     TEXT NOT NULL,
	dataset      TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	record_count INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	imported_by  TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	duration_ms  BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_imports_started_at ON imports(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartImport(ctx context.Context, rec *model.ImportRecord) error {
	rec.ID = uuid.New().String()
	rec.Status = model.ImportStatusRunning
	rec.StartedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO imports (id, filename, dataset, state, category, status, imported_by, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Filename, rec.Dataset, rec.State, rec.Category, string(rec.Status), rec.ImportedBy, rec.StartedAt,
	)
	return eris.Wrap(err, "postgres: start import")
}

func (s *PostgresStore) CompleteImport(ctx context.Context, id string, count int, elapsed time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE imports SET status = $1, record_count = $2, duration_ms = $3 WHERE id = $4`,
		string(model.ImportStatusCompleted), count, elapsed.Milliseconds(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: complete import")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FailImport(ctx context.Context, id string, cause error, elapsed time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE imports SET status = $1, error = $2, duration_ms = $3 WHERE id = $4`,
		string(model.ImportStatusFailed), errorText(cause), elapsed.Milliseconds(), id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: fail import")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListImports(ctx context.Context, limit int) ([]model.ImportRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, dataset, state, category, status, record_count, error, imported_by, started_at, duration_ms
		 FROM imports ORDER BY started_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list imports")
	}
	defer rows.Close()

	out := []model.ImportRecord{}
	for rows.Next() {
		var (
			rec    model.ImportRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Dataset, &rec.State, &rec.Category, &status,
			&rec.RecordCount, &rec.Error, &rec.ImportedBy, &rec.StartedAt, &rec.DurationMs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan import")
		}
		rec.Status = model.ImportStatus(status)
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list imports iterate")
}
