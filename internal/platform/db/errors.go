package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnreachable marks failures to reach the relational store at all.
var ErrUnreachable = errors.New("platform/db: store unreachable")

// CodeForeignKeyViolation is the SQLSTATE for a foreign key violation.
const CodeForeignKeyViolation = "23503"

// Classify wraps connectivity failures with ErrUnreachable and leaves other errors untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr), errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}

// PgCode returns the SQLSTATE carried by err, if any.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
