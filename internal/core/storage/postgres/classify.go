package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/lib/pq"
)

// isTransient reports whether err is worth retrying on a later delivery:
// lost connections, timeouts, resource exhaustion, shutdowns and
// serialization conflicts. Everything else is permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53": // connection exception, insufficient resources
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03", "40001", "40P01":
			return true
		}
	}
	return false
}

// aggregationError classifies err and wraps it for the crunch pipeline.
func aggregationError(op string, err error) error {
	return &cerrors.AggregationError{Op: op, Transient: isTransient(err), Err: err}
}
