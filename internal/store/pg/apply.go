package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Execer is the part of *sql.DB that ApplyDDL needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyDDL runs the steps of ddl in key order, one statement at a time.
// Statements that fail because the object already exists are skipped.
func ApplyDDL(ctx context.Context, db Execer, ddl map[string]string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, stmt := range Statements(ddl[k]) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && (pgErr.Code == "42710" || pgErr.Code == "42P07") {
					logger.Debug("ddl skipped, already exists",
						zap.String("step", k),
						zap.String("object", pgErr.ConstraintName),
						zap.String("message", pgErr.Message))
					continue
				}
				return fmt.Errorf("ddl apply failed in %s: %w", k, err)
			}
		}
		logger.Info("ddl step applied", zap.String("step", k))
	}
	return nil
}

// Statements splits a DDL script on the statement terminators GenerateDDL
// writes at line ends.
func Statements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";\n") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
