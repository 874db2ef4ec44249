// package repositories provides the sqlite persistence layer.
//
// Lookups return (nil, nil) when no row matches so callers can treat
// "not found" as an answer rather than a failure; writes report the
// affected-row count mismatch as an error.
package repositories

import (
	"database/sql"
	"fmt"
)

// mustAffect verifies a write touched at least one row.
func mustAffect(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: no matching row", what)
	}
	return nil
}
