// Package database implements the connection registry and the scoped session
// manager used by every store in the service.
//
// Engines are created lazily, cached per (URI, mode) pair, and live for the
// whole process. Sessions are single-use units of work with commit-on-success,
// rollback-on-error and bounded retry for transient failures.
package database

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how callers interact with an engine's sessions.
type Mode int

const (
	// ModeBlocking engines serve plain, thread-blocking session scopes.
	ModeBlocking Mode = iota
	// ModeNonBlocking engines serve context-aware session scopes that honor
	// cancellation at every I/O point.
	ModeNonBlocking
)

func (m Mode) String() string {
	switch m {
	case ModeBlocking:
		return "blocking"
	case ModeNonBlocking:
		return "non-blocking"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectMySQL
	dialectSQLite
)

// Default pool and retry settings, overridable per engine via PoolConfig and
// per manager via Manager fields.
const (
	DefaultPoolSize         = 5
	DefaultMaxOverflow      = 10
	DefaultAcquireTimeout   = 30 * time.Second
	DefaultIdleRecycle      = 1800 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultRetryCount       = 3
	DefaultRetryBackoff     = 2 * time.Second
)

// PoolConfig carries the connection pool knobs for one engine. Zero values
// fall back to the package defaults.
type PoolConfig struct {
	PoolSize         int
	MaxOverflow      int
	AcquireTimeout   time.Duration
	IdleRecycle      time.Duration
	StatementTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxOverflow <= 0 {
		c.MaxOverflow = DefaultMaxOverflow
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.IdleRecycle <= 0 {
		c.IdleRecycle = DefaultIdleRecycle
	}
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = DefaultStatementTimeout
	}
	return c
}

// DetectMode derives the execution mode from the URI scheme. Scheme prefixes
// naming an async-capable driver select non-blocking mode; the plain
// relational schemes select blocking mode. Unknown schemes fail fast.
func DetectMode(uri string) (Mode, error) {
	scheme, _, ok := splitScheme(uri)
	if !ok {
		return ModeBlocking, configErrorf("database URI %q has no scheme", uri)
	}
	switch scheme {
	case "postgresql+asyncpg", "mysql+asyncmy":
		return ModeNonBlocking, nil
	case "postgres", "postgresql", "mysql", "sqlite":
		return ModeBlocking, nil
	default:
		return ModeBlocking, configErrorf("unsupported database scheme %q", scheme)
	}
}

// RequirePostgres returns a config error when the URI does not resolve to the
// postgres dialect. The SQL issued by the storage and migration layers uses
// postgres placeholders and DDL, so other dialects cannot be served.
func RequirePostgres(uri string) error {
	_, _, d, err := driverDSN(uri)
	if err != nil {
		return err
	}
	if d != dialectPostgres {
		return configErrorf("unsupported database dialect for %q: storage requires postgres", uri)
	}
	return nil
}

// driverDSN maps a URI onto a registered driver name, its DSN and dialect.
// Async scheme hints are stripped so both modes share one underlying driver.
func driverDSN(uri string) (driver, dsn string, d dialect, err error) {
	scheme, rest, ok := splitScheme(uri)
	if !ok {
		return "", "", 0, configErrorf("database URI %q has no scheme", uri)
	}
	switch scheme {
	case "postgres", "postgresql", "postgresql+asyncpg":
		return "postgres", "postgres://" + rest, dialectPostgres, nil
	case "mysql", "mysql+asyncmy":
		return "mysql", rest, dialectMySQL, nil
	case "sqlite":
		return "sqlite", rest, dialectSQLite, nil
	default:
		return "", "", 0, configErrorf("unsupported database scheme %q", scheme)
	}
}

func splitScheme(uri string) (scheme, rest string, ok bool) {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return "", "", false
	}
	return strings.ToLower(uri[:idx]), uri[idx+3:], true
}
