package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/zignal/zignalapi/internal/db/bunx"
)

func notFound(what, key string) error {
	return fmt.Errorf("%s %s: %w", what, key, ErrNotFound)
}

func wrapNoRows(err error, what, key, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(what, key)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// uuidIDs keeps the ids that can match a uuid column. Anything else cannot
// name a row and would make PostgreSQL reject the whole statement.
func uuidIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if bunx.IsUUID(id) {
			out = append(out, id)
		}
	}
	return out
}

// likePattern builds a case-insensitive substring pattern for LOWER(col) LIKE ?.
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
