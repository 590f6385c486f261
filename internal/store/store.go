// Package store persists the history of raw file imports.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/referral-os/directory/internal/model"
)

// DefaultListLimit caps ListImports when the caller passes no limit.
const DefaultListLimit = 50

// Store records import attempts and their outcomes.
type Store interface {
	// StartImport inserts rec as running and fills in its ID and StartedAt.
	StartImport(ctx context.Context, rec *model.ImportRecord) error
	CompleteImport(ctx context.Context, id string, count int, elapsed time.Duration) error
	FailImport(ctx context.Context, id string, cause error, elapsed time.Duration) error
	// ListImports returns the most recent imports first.
	ListImports(ctx context.Context, limit int) ([]model.ImportRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver. For sqlite dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func errorText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
