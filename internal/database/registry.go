package database

import (
	"database/sql"
	"sync"

	"github.com/platformeng/demo-user-service/pkg/logger"
)

// Registry caches one Engine and one SessionFactory per (URI, mode) pair for
// the lifetime of the process. Construction is serialized with a single mutex
// so concurrent first access never builds duplicate pools; the lock is never
// held during request handling.
type Registry struct {
	mu          sync.RWMutex
	blocking    map[string]*entry
	nonBlocking map[string]*entry
	log         *logger.Logger

	// openFn is swapped in tests to observe construction.
	openFn func(driver, dsn string) (*sql.DB, error)
}

type entry struct {
	engine  *Engine
	factory *SessionFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault("database")
	}
	return &Registry{
		blocking:    make(map[string]*entry),
		nonBlocking: make(map[string]*entry),
		log:         log,
		openFn:      sql.Open,
	}
}

// GetOrCreate returns the engine and session factory for uri, building them on
// first access. The requested mode must match the mode implied by the URI
// scheme. Repeated calls with the same (uri, mode) return identical instances.
func (r *Registry) GetOrCreate(uri string, mode Mode, cfg PoolConfig) (*Engine, *SessionFactory, error) {
	implied, err := DetectMode(uri)
	if err != nil {
		return nil, nil, err
	}
	if mode != implied {
		return nil, nil, configErrorf("URI %q implies %s mode but %s was requested", uri, implied, mode)
	}

	cache := r.cache(mode)

	r.mu.RLock()
	e, ok := cache[uri]
	r.mu.RUnlock()
	if ok {
		return e.engine, e.factory, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := cache[uri]; ok {
		return e.engine, e.factory, nil
	}

	engine, err := r.buildEngine(uri, mode, cfg)
	if err != nil {
		return nil, nil, err
	}
	e = &entry{engine: engine, factory: &SessionFactory{engine: engine}}
	cache[uri] = e

	r.log.WithField("mode", mode.String()).
		WithField("pool_size", engine.cfg.PoolSize).
		WithField("max_overflow", engine.cfg.MaxOverflow).
		Info("database engine created")
	return e.engine, e.factory, nil
}

func (r *Registry) cache(mode Mode) map[string]*entry {
	if mode == ModeNonBlocking {
		return r.nonBlocking
	}
	return r.blocking
}

func (r *Registry) buildEngine(uri string, mode Mode, cfg PoolConfig) (*Engine, error) {
	driver, dsn, d, err := driverDSN(uri)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	db, err := r.openFn(driver, dsn)
	if err != nil {
		return nil, Wrap(err)
	}

	db.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(cfg.IdleRecycle)

	return &Engine{uri: uri, mode: mode, dialect: d, cfg: cfg, db: db}, nil
}

// Close tears down every cached engine. Intended for shutdown and tests only;
// engines are otherwise process-lived.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, cache := range []map[string]*entry{r.blocking, r.nonBlocking} {
		for uri, e := range cache {
			if err := e.engine.db.Close(); err != nil && first == nil {
				first = err
			}
			delete(cache, uri)
		}
	}
	return first
}
