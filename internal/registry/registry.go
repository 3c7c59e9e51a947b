package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/server/config"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

// Registry holds the process's storage backend.
//
// The slot goes from empty to holding a backend on the first successful
// Init. A later Init replaces the backend; the replaced one stays open
// for in-flight callers and is closed by Close.
type Registry struct {
	mu      sync.RWMutex
	repo    repository.Repository
	retired []repository.Repository

	builder *Builder
	logger  *slog.Logger
	metrics *metric.Registry

	factories *Factories
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records init and get metrics in m.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithFactories replaces the backend constructors.
func WithFactories(f Factories) Option {
	return func(r *Registry) {
		r.factories = &f
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")

	f := DefaultFactories(r.logger, r.metrics)
	if r.factories != nil {
		f = *r.factories
	}
	r.builder = NewBuilder(f, r.logger)
	return r
}

// Init constructs the backend described by cfg and installs it. The
// write lock is held for the whole construction. On error the slot is
// left as it was.
func (r *Registry) Init(ctx context.Context, cfg *config.ServerConfig) error {
	kind := "unknown"
	if cfg != nil {
		kind = strings.ToLower(strings.TrimSpace(cfg.Repository.Format))
	}
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	repo, err := r.builder.Build(ctx, cfg)
	if r.metrics != nil {
		r.metrics.RepositoryInits.WithLabelValues(kind, metric.Result(err)).Inc()
		r.metrics.RepositoryInitDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.logger.Error("repository initialization failed", "format", kind, "error", err)
		return err
	}

	if r.repo != nil {
		r.logger.Warn("repository re-initialized, replacing active backend",
			"previous_kind", r.repo.Kind().String(),
			"previous_id", r.repo.ID(),
			"kind", repo.Kind().String(),
			"id", repo.ID())
		r.retired = append(r.retired, r.repo)
	}
	r.repo = repo

	r.logger.Info("repository initialized",
		"kind", repo.Kind().String(),
		"id", repo.ID(),
		"duration", time.Since(start))
	return nil
}

// Get returns the active backend. It panics with ErrNotInitialized if no
// Init has succeeded.
func (r *Registry) Get() repository.Repository {
	r.mu.RLock()
	repo := r.repo
	r.mu.RUnlock()

	if repo == nil {
		panic(ErrNotInitialized)
	}
	if r.metrics != nil {
		r.metrics.RepositoryGets.Inc()
	}
	return repo
}

// Initialized reports whether a backend is installed.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.repo != nil
}

// State reports the active backend for metrics collection.
func (r *Registry) State() (metric.RepositoryState, bool) {
	r.mu.RLock()
	repo := r.repo
	r.mu.RUnlock()

	if repo == nil {
		return metric.RepositoryState{}, false
	}
	return metric.RepositoryState{
		Kind:         repo.Kind().String(),
		ID:           repo.ID(),
		LastValidLSN: uint64(repo.LastValidLSN()),
	}, true
}

// Close closes the active and all retired backends and empties the slot.
func (r *Registry) Close() error {
	r.mu.Lock()
	repos := append(r.retired, r.repo)
	r.repo = nil
	r.retired = nil
	r.mu.Unlock()

	var errs []error
	for _, repo := range repos {
		if repo == nil {
			continue
		}
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
