package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Column is a column name with the Postgres type its array parameter is cast to.
type Column struct {
	Name string
	Type string // e.g. "text", "float8", "int4"
}

// UpdateConfig describes a bulk update of existing rows.
type UpdateConfig struct {
	Table   string
	Key     Column
	Columns []Column
	// KeepExisting leaves a column untouched when the new value is NULL.
	KeepExisting bool
}

// UpdateSQL renders the UPDATE ... FROM unnest statement for cfg. Parameter
// $1 is the key array and $2.. follow Columns.
func UpdateSQL(cfg UpdateConfig) string {
	arrays := make([]string, 0, len(cfg.Columns)+1)
	aliases := make([]string, 0, len(cfg.Columns)+1)
	sets := make([]string, len(cfg.Columns))

	arrays = append(arrays, fmt.Sprintf("$1::%s[]", cfg.Key.Type))
	aliases = append(aliases, pgx.Identifier{cfg.Key.Name}.Sanitize())
	for i, c := range cfg.Columns {
		ident := pgx.Identifier{c.Name}.Sanitize()
		arrays = append(arrays, fmt.Sprintf("$%d::%s[]", i+2, c.Type))
		aliases = append(aliases, ident)
		if cfg.KeepExisting {
			sets[i] = fmt.Sprintf("%s = COALESCE(u.%s, t.%s)", ident, ident, ident)
		} else {
			sets[i] = fmt.Sprintf("%s = u.%s", ident, ident)
		}
	}

	key := pgx.Identifier{cfg.Key.Name}.Sanitize()
	return fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM unnest(%s) AS u(%s) WHERE t.%s = u.%s",
		sanitizeTable(cfg.Table),
		strings.Join(sets, ", "),
		strings.Join(arrays, ", "),
		strings.Join(aliases, ", "),
		key, key,
	)
}

// BulkUpdate updates rows that already exist, matched on the key column.
// Keys with no matching row are ignored. columns holds one typed slice per
// cfg.Columns entry, each as long as keys.
func BulkUpdate(ctx context.Context, pool Pool, cfg UpdateConfig, keys []string, columns ...any) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: update: no columns specified")
	}
	if len(columns) != len(cfg.Columns) {
		return 0, eris.Errorf("db: update: %d columns configured, %d arrays given", len(cfg.Columns), len(columns))
	}

	args := make([]any, 0, len(columns)+1)
	args = append(args, keys)
	args = append(args, columns...)

	tag, err := pool.Exec(ctx, UpdateSQL(cfg), args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: update %s", cfg.Table)
	}
	return tag.RowsAffected(), nil
}
