package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-os/directory/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var importColumns = []string{
	"id", "filename", "dataset", "state", "category", "status",
	"record_count", "error", "imported_by", "started_at", "duration_ms",
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS imports`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartImport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO imports`).
		WithArgs(pgxmock.AnyArg(), "a.csv", "idfpr", "IL", "Realtor", "running", "admin", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.ImportRecord{Filename: "a.csv", Dataset: "idfpr", State: "IL", Category: "Realtor", ImportedBy: "admin"}
	require.NoError(t, s.StartImport(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.ImportStatusRunning, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartImport_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO imports`).WillReturnError(errors.New("connection refused"))

	err := s.StartImport(context.Background(), &model.ImportRecord{Filename: "a.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: start import")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteImport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE imports SET status = \$1, record_count = \$2, duration_ms = \$3 WHERE id = \$4`).
		WithArgs("completed", 12, int64(250), "imp-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteImport(context.Background(), "imp-1", 12, 250*time.Millisecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteImport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE imports`).
		WithArgs("completed", 1, int64(0), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteImport(context.Background(), "missing", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailImport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE imports SET status = \$1, error = \$2`).
		WithArgs("failed", "disk full", int64(3), "imp-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailImport(context.Background(), "imp-2", errors.New("disk full"), 3*time.Millisecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListImports(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, filename, dataset, state, category, status, record_count, error, imported_by, started_at, duration_ms\s+FROM imports ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows(importColumns).
			AddRow("imp-2", "b.csv", "idfpr", "IL", "Realtor", "failed", 0, "boom", "", started.Add(time.Minute), int64(9)).
			AddRow("imp-1", "a.csv", "idfpr", "IL", "Realtor", "completed", 30, "", "admin", started, int64(120)))

	got, err := s.ListImports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "imp-2", got[0].ID)
	assert.Equal(t, model.ImportStatusFailed, got[0].Status)
	assert.Equal(t, "boom", got[0].Error)
	assert.Equal(t, 30, got[1].RecordCount)
	assert.Equal(t, started, got[1].StartedAt)
	assert.Equal(t, int64(120), got[1].DurationMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListImports_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM imports`).WithArgs(5).WillReturnError(errors.New("timeout"))

	_, err := s.ListImports(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list imports")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
