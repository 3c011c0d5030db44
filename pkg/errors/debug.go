package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgDetail is what Postgres told us about a failed statement. Both drivers
// in the tree report it: pgx under gorm and lib/pq in scripts and tests.
type pgDetail struct {
	code, constraint, table, column, detail, message string
}

func postgresDetail(err error) (pgDetail, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgDetail{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgDetail{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgDetail{}, false
}

// Chain lists every error in err's Unwrap chain with its dynamic type,
// outermost first.
func Chain(err error) []string {
	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	return chain
}

// LogFields flattens err for a log entry: the unwrap chain, any
// Postgres diagnostics and the "step" detail some services attach. Empty
// values are left out.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{
		"error_chain": Chain(err),
	}
	if typed := As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if step, ok := details["step"]; ok {
				fields["step"] = step
			}
		}
	}
	if pg, ok := postgresDetail(err); ok {
		for key, value := range map[string]string{
			"pg_code":       pg.code,
			"pg_constraint": pg.constraint,
			"pg_table":      pg.table,
			"pg_column":     pg.column,
			"pg_detail":     pg.detail,
			"pg_message":    pg.message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
