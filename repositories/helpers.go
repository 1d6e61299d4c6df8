package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// Postgres error classes that indicate the write may succeed if repeated:
// connection exceptions, resource exhaustion, operator intervention.
var transientPQClasses = map[string]bool{
	"08": true, // connection_exception
	"53": true, // insufficient_resources
	"57": true, // operator_intervention
	"58": true, // system_error (disk full etc.)
}

// IsTransient reports whether a store error is worth retrying. Everything
// else (constraint violations, bad SQL, not-found sentinels) is permanent
// and must be surfaced rather than retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientPQClasses[string(pqErr.Code.Class())]
	}
	return false
}
