package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platformeng/demo-user-service/pkg/logger"
)

// Engine owns the physical connection pool for one database URI. Engines are
// built by the Registry and live until process exit.
type Engine struct {
	uri     string
	mode    Mode
	dialect dialect
	cfg     PoolConfig
	db      *sql.DB
}

// NewEngine wraps an already-open pool in an engine whose mode and dialect are
// derived from uri. Used by tests and by callers that manage their own *sql.DB;
// everything else goes through the Registry.
func NewEngine(db *sql.DB, uri string, cfg PoolConfig) (*Engine, *SessionFactory, error) {
	mode, err := DetectMode(uri)
	if err != nil {
		return nil, nil, err
	}
	_, _, d, err := driverDSN(uri)
	if err != nil {
		return nil, nil, err
	}
	engine := &Engine{uri: uri, mode: mode, dialect: d, cfg: cfg.withDefaults(), db: db}
	return engine, &SessionFactory{engine: engine}, nil
}

// Mode reports the execution mode the engine was built for.
func (e *Engine) Mode() Mode { return e.mode }

// URI reports the connection URI the engine was built from.
func (e *Engine) URI() string { return e.uri }

// DB exposes the underlying pool for migrations and health probes.
func (e *Engine) DB() *sql.DB { return e.db }

// HealthCheck verifies the database answers a trivial query.
func (e *Engine) HealthCheck(ctx context.Context) error {
	var one int
	if err := e.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return Wrap(err)
	}
	return nil
}

// timeoutDirective returns the per-session statement timeout statement for the
// engine's dialect, or "" when the dialect has none.
func (e *Engine) timeoutDirective() string {
	ms := e.cfg.StatementTimeout.Milliseconds()
	switch e.dialect {
	case dialectPostgres:
		return fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)
	case dialectMySQL:
		return fmt.Sprintf("SET SESSION max_execution_time = %d", ms)
	default:
		return ""
	}
}

// SessionFactory produces sessions bound to exactly one engine.
type SessionFactory struct {
	engine *Engine
}

// Engine returns the engine the factory is bound to.
func (f *SessionFactory) Engine() *Engine { return f.engine }

// open acquires a pooled connection, starts a transaction and applies the
// statement-timeout directive. Pool acquisition is bounded by AcquireTimeout;
// the transaction itself stays bound to the caller's context so cancellation
// rolls it back at the next checkpoint.
func (f *SessionFactory) open(ctx context.Context) (*Session, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, f.engine.cfg.AcquireTimeout)
	conn, err := f.engine.db.Conn(acquireCtx)
	cancel()
	if err != nil {
		return nil, Wrap(err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, Wrap(err)
	}

	s := &Session{conn: conn, tx: tx}
	if directive := f.engine.timeoutDirective(); directive != "" {
		if _, err := tx.ExecContext(ctx, directive); err != nil {
			s.rollback()
			return nil, Wrap(err)
		}
	}
	return s, nil
}

// Session is a single-use unit of work bound to one transaction. It is closed
// exactly once on every exit path by the Manager.
type Session struct {
	conn   *sql.Conn
	tx     *sql.Tx
	closed bool
}

func (s *Session) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.tx.Exec(query, args...)
}

func (s *Session) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *Session) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.tx.Query(query, args...)
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *Session) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.tx.QueryRow(query, args...)
}

func (s *Session) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

// commit finishes the transaction and returns the connection to the pool.
func (s *Session) commit() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.tx.Commit()
	s.conn.Close()
	return err
}

// rollback aborts the transaction and returns the connection to the pool.
func (s *Session) rollback() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.tx.Rollback()
	s.conn.Close()
}

// Manager executes work blocks inside scoped sessions with bounded retry.
//
// Per attempt: open a fresh session, apply the statement timeout, run the work
// block, commit on success. Transient failures roll back, close the session,
// wait RetryBackoff and re-run the whole block with a fresh session until
// RetryCount attempts are spent. Non-transient failures propagate immediately.
// The work block therefore must be idempotent outside its transaction.
type Manager struct {
	RetryCount   int
	RetryBackoff time.Duration

	// Metrics receives per-attempt timings and retry counts when set.
	Metrics SessionMetrics

	log *logger.Logger
}

// SessionMetrics observes session scope execution. Satisfied by
// metrics.Metrics.
type SessionMetrics interface {
	RecordSessionRetry(mode string)
	RecordSessionDuration(mode, outcome string, duration time.Duration)
}

// NewManager creates a session manager with the default retry policy.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("database")
	}
	return &Manager{
		RetryCount:   DefaultRetryCount,
		RetryBackoff: DefaultRetryBackoff,
		log:          log,
	}
}

// Run executes fn inside a blocking session scope. The factory's engine must
// be in blocking mode; the check happens before any session is opened.
func (m *Manager) Run(f *SessionFactory, fn func(*Session) error) error {
	if f.engine.Mode() != ModeBlocking {
		return configErrorf("mode mismatch: engine for %q requires non-blocking sessions, use RunContext", f.engine.URI())
	}
	return m.run(context.Background(), f, func(_ context.Context, s *Session) error {
		return fn(s)
	})
}

// RunContext executes fn inside a non-blocking session scope. The factory's
// engine must be in non-blocking mode; the check happens before any session is
// opened. Cancellation of ctx aborts the scope at the next checkpoint.
func (m *Manager) RunContext(ctx context.Context, f *SessionFactory, fn func(context.Context, *Session) error) error {
	if f.engine.Mode() != ModeNonBlocking {
		return configErrorf("mode mismatch: engine for %q requires blocking sessions, use Run", f.engine.URI())
	}
	return m.run(ctx, f, fn)
}

func (m *Manager) run(ctx context.Context, f *SessionFactory, fn func(context.Context, *Session) error) error {
	retries := m.RetryCount
	if retries <= 0 {
		retries = DefaultRetryCount
	}

	mode := f.engine.Mode().String()

	var attempt int
	for {
		attempt++

		start := time.Now()
		err := m.attempt(ctx, f, fn)
		m.observe(mode, err, time.Since(start))
		if err == nil {
			return nil
		}

		wrapped := Wrap(err)
		if wrapped.Kind != KindTransient || attempt >= retries {
			return wrapped
		}

		if m.Metrics != nil {
			m.Metrics.RecordSessionRetry(mode)
		}
		m.log.WithError(wrapped.Err).
			WithField("attempt", attempt).
			WithField("retries", retries).
			Warn("transient database failure, retrying")

		select {
		case <-time.After(m.RetryBackoff):
		case <-ctx.Done():
			return Wrap(ctx.Err())
		}
	}
}

func (m *Manager) observe(mode string, err error, elapsed time.Duration) {
	if m.Metrics == nil {
		return
	}
	outcome := "commit"
	if err != nil {
		outcome = "rollback"
	}
	m.Metrics.RecordSessionDuration(mode, outcome, elapsed)
}

func (m *Manager) attempt(ctx context.Context, f *SessionFactory, fn func(context.Context, *Session) error) error {
	s, err := f.open(ctx)
	if err != nil {
		return err
	}
	// Covers panics escaping the work block.
	defer s.rollback()

	if err := fn(ctx, s); err != nil {
		s.rollback()
		return err
	}
	return s.commit()
}
