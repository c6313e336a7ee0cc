package services

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// nextSequentialID produces the next human-readable identifier for a table,
// e.g. CUST001 -> CUST002. The caller's transaction serializes concurrent
// inserts into the same table.
func nextSequentialID(q sqlRunner, table, column, prefix string) (string, error) {
	var last sql.NullString
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY LENGTH(%s) DESC, %s DESC LIMIT 1", column, table, column, column)
	err := q.QueryRow(query).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("read last %s id: %w", table, err)
	}

	n := 0
	if last.Valid {
		suffix := strings.TrimPrefix(last.String, prefix)
		if parsed, perr := strconv.Atoi(suffix); perr == nil {
			n = parsed
		}
	}
	return fmt.Sprintf("%s%03d", prefix, n+1), nil
}
