package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Kind is the closed set of database error categories. Every error leaving
// this package is an *Error tagged with one of these, so callers translate by
// matching on the tag instead of on concrete driver types.
type Kind int

const (
	// KindDatabase covers driver and SQL errors with no more specific category.
	KindDatabase Kind = iota
	// KindTransient covers connection-level and serialization failures that
	// are safe to retry with a fresh session.
	KindTransient
	// KindIntegrity covers uniqueness and foreign-key constraint violations.
	KindIntegrity
	// KindConfig covers setup mistakes: bad URIs, unsupported schemes, mode
	// mismatches. Never retried.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindIntegrity:
		return "integrity"
	case KindConfig:
		return "config"
	default:
		return "database"
	}
}

// Error is the tagged error type produced by the session layer.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("database (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err and tags it. Already-tagged errors pass through.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}
	return &Error{Kind: Classify(err), Err: err}
}

// Classify maps a raw driver error onto its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindDatabase
	}

	if errors.Is(err, driver.ErrBadConn) {
		return KindTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection exceptions
			return KindTransient
		case pqErr.Code == "40001" || pqErr.Code == "40P01": // serialization, deadlock
			return KindTransient
		case pqErr.Code.Class() == "23": // integrity constraint violations
			return KindIntegrity
		default:
			return KindDatabase
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1216, 1217, 1451, 1452: // duplicate key, FK violations
			return KindIntegrity
		case 1205, 1213, 2006, 2013: // lock wait, deadlock, server gone, lost conn
			return KindTransient
		default:
			return KindDatabase
		}
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return KindTransient
	}

	// Some drivers expose constraint failures only via message text.
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		return KindIntegrity
	}

	return KindDatabase
}

// IsTransient reports whether err is tagged (or classifiable) as retryable.
func IsTransient(err error) bool {
	return err != nil && Wrap(err).Kind == KindTransient
}

// IsIntegrity reports whether err is a constraint violation.
func IsIntegrity(err error) bool {
	return err != nil && Wrap(err).Kind == KindIntegrity
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return err != nil && Wrap(err).Kind == KindConfig
}

func configErrorf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}
