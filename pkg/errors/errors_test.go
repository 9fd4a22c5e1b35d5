package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStorageClassifiesConnectivity(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrUnavailable.Code},
		{"context cancelled", context.Canceled, ErrUnavailable.Code},
		{"bad connection", driver.ErrBadConn, ErrUnavailable.Code},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrUnavailable.Code},
		{"query error", errors.New("syntax error at or near"), ErrInternal.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := FromStorage(tc.err, "failed to load rows")
			assert.Equal(t, tc.code, wrapped.Code)
			assert.Equal(t, "failed to load rows", wrapped.Message)
			assert.ErrorIs(t, wrapped, tc.err)
		})
	}
}

func TestFromStorageStatus(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, FromStorage(driver.ErrBadConn, "down").Status)
	assert.Equal(t, http.StatusInternalServerError, FromStorage(errors.New("boom"), "broken").Status)
}
