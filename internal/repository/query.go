package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// filterBuilder accumulates positional WHERE conditions for list queries.
type filterBuilder struct {
	conditions []string
	args       []interface{}
}

// scoped starts a builder restricted to one school.
func scoped(column, schoolID string) *filterBuilder {
	b := &filterBuilder{}
	b.add(column+" = $%d", schoolID)
	return b
}

// add appends a condition; every %d / %[1]d verb in expr is the new argument's position.
func (b *filterBuilder) add(expr string, value interface{}) {
	b.args = append(b.args, value)
	b.conditions = append(b.conditions, fmt.Sprintf(expr, len(b.args)))
}

// search matches value case-insensitively against any of the columns.
func (b *filterBuilder) search(value string, columns ...string) {
	if strings.TrimSpace(value) == "" || len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE $%[1]d"
	}
	b.add("("+strings.Join(parts, " OR ")+")", "%"+strings.TrimSpace(value)+"%")
}

func (b *filterBuilder) where() string {
	if len(b.conditions) == 0 {
		return "WHERE 1=1"
	}
	return "WHERE " + strings.Join(b.conditions, " AND ")
}

// pageWindow normalises pagination input into LIMIT/OFFSET values.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

// orderBy validates the sort column against an allow list.
func orderBy(sortBy, sortOrder, fallback, fallbackOrder string, allowed map[string]bool) string {
	if !allowed[sortBy] {
		sortBy = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = fallbackOrder
	}
	return fmt.Sprintf("ORDER BY %s %s", sortBy, order)
}

// rowExists runs a SELECT 1 query and reports whether it returned a row.
func rowExists(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (bool, error) {
	var found int
	if err := sqlx.GetContext(ctx, q, &found, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// excluding appends an "id <> $n" clause when excludeID is set.
func excluding(query string, args []interface{}, excludeID string) (string, []interface{}) {
	if excludeID == "" {
		return query, args
	}
	args = append(args, excludeID)
	return fmt.Sprintf("%s AND id <> $%d", query, len(args)), args
}

// requireAffected turns a write that matched no row into sql.ErrNoRows.
func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
