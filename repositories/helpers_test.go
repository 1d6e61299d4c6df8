package repositories

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("create point: %w", context.DeadlineExceeded), true},
		{"bad connection", driver.ErrBadConn, true},
		{"network error", timeoutErr{}, true},
		{"pq connection exception", &pq.Error{Code: "08006"}, true},
		{"pq insufficient resources", &pq.Error{Code: "53300"}, true},
		{"pq operator intervention", &pq.Error{Code: "57014"}, true},
		{"pq fk violation", &pq.Error{Code: "23503"}, false},
		{"pq unique violation", &pq.Error{Code: "23505"}, false},
		{"pq undefined table", &pq.Error{Code: "42P01"}, false},
		{"sentinel not found", ErrPointNotFound, false},
		{"already finalized", ErrPointAlreadyFinalized, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err), "error: %v", tc.err)
		})
	}
}

type fakeResult struct {
	rows    int64
	rowsErr error
}

func (f fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (f fakeResult) RowsAffected() (int64, error) { return f.rows, f.rowsErr }

func TestCheckAffectedRows(t *testing.T) {
	notFound := errors.New("record not found")

	assert.NoError(t, checkAffectedRows(fakeResult{rows: 1}, notFound))
	assert.ErrorIs(t, checkAffectedRows(fakeResult{rows: 0}, notFound), notFound)

	err := checkAffectedRows(fakeResult{rowsErr: errors.New("driver broke")}, notFound)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, notFound)
}
