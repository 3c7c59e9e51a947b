package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/repository/inmemory"
	"github.com/yndnr/pageserver-go/internal/repository/objectrepo"
	"github.com/yndnr/pageserver-go/internal/server/config"
	"github.com/yndnr/pageserver-go/internal/storage/objectstore"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
	"github.com/yndnr/pageserver-go/internal/walredo"
)

// Registry errors.
var (
	// ErrNotInitialized is the panic value of Get before a successful Init.
	ErrNotInitialized = domain.NewDomainError("PS-REG-5000", "repository registry not initialized")

	// ErrObjectStoreOpen wraps a failure to open the persistent backend's
	// object store.
	ErrObjectStoreOpen = domain.NewDomainError("PS-REG-5001", "failed to open object store")
)

// Factories constructs the collaborators of a repository. Every field
// must be set; DefaultFactories wires the real constructors.
type Factories struct {
	NewRedoManager      func(cfg walredo.Config) walredo.Manager
	OpenObjectStore     func(ctx context.Context, cfg objectstore.Config) (objectstore.Store, error)
	NewInMemory         func(cfg inmemory.Config, redo walredo.Manager) repository.Repository
	NewObjectRepository func(ctx context.Context, cfg objectrepo.Config, store objectstore.Store, redo walredo.Manager) (repository.Repository, error)
}

// DefaultFactories returns factories for the built-in backends. metrics
// may be nil.
func DefaultFactories(logger *slog.Logger, metrics *metric.Registry) Factories {
	if logger == nil {
		logger = slog.Default()
	}
	var reg prometheus.Registerer
	if metrics != nil {
		reg = metrics.Prometheus()
	}

	return Factories{
		NewRedoManager: func(cfg walredo.Config) walredo.Manager {
			return walredo.New(cfg, logger, metrics)
		},
		OpenObjectStore: func(ctx context.Context, cfg objectstore.Config) (objectstore.Store, error) {
			return objectstore.Open(ctx, cfg, logger, reg)
		},
		NewInMemory: func(cfg inmemory.Config, redo walredo.Manager) repository.Repository {
			return inmemory.New(cfg, redo, logger)
		},
		NewObjectRepository: func(ctx context.Context, cfg objectrepo.Config, store objectstore.Store, redo walredo.Manager) (repository.Repository, error) {
			return objectrepo.New(ctx, cfg, store, redo, logger)
		},
	}
}

// Builder selects and constructs the configured backend.
type Builder struct {
	factories Factories
	logger    *slog.Logger
}

// NewBuilder creates a builder using f.
func NewBuilder(f Factories, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{factories: f, logger: logger}
}

// Build constructs the redo manager, then (for the persistent format) the
// object store, then the backend. Nothing is retried.
func (b *Builder) Build(ctx context.Context, cfg *config.ServerConfig) (repository.Repository, error) {
	if cfg == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("configuration is required")
	}

	redo := b.factories.NewRedoManager(WALRedoConfig(cfg))

	kind, err := repository.ParseKind(cfg.Repository.Format)
	if err != nil {
		return nil, err
	}

	switch kind {
	case repository.KindInMemory:
		return b.factories.NewInMemory(InMemoryConfig(cfg), redo), nil

	case repository.KindObjectStore:
		storeCfg := ObjectStoreConfig(cfg)
		store, err := b.factories.OpenObjectStore(ctx, storeCfg)
		if err != nil {
			return nil, ErrObjectStoreOpen.WithDetailsf("driver %q", storeCfg.Driver).WithCause(err)
		}
		repo, err := b.factories.NewObjectRepository(ctx, ObjectRepoConfig(cfg), store, redo)
		if err != nil {
			if cerr := store.Close(); cerr != nil {
				b.logger.Warn("failed to close object store after failed build", "error", cerr)
			}
			return nil, fmt.Errorf("open object store repository: %w", err)
		}
		return repo, nil

	default:
		return nil, repository.ErrUnknownKind.WithDetailsf("%v", kind)
	}
}

// WALRedoConfig extracts the redo manager configuration.
func WALRedoConfig(cfg *config.ServerConfig) walredo.Config {
	return walredo.Config{Timeout: cfg.WALRedo.Timeout}
}

// InMemoryConfig extracts the volatile backend configuration.
func InMemoryConfig(cfg *config.ServerConfig) inmemory.Config {
	return inmemory.Config{WaitLSNTimeout: cfg.Repository.WaitLSNTimeout}
}

// ObjectRepoConfig extracts the persistent backend configuration.
func ObjectRepoConfig(cfg *config.ServerConfig) objectrepo.Config {
	return objectrepo.Config{WaitLSNTimeout: cfg.Repository.WaitLSNTimeout}
}

// ObjectStoreConfig extracts the object store configuration.
func ObjectStoreConfig(cfg *config.ServerConfig) objectstore.Config {
	sc := cfg.ObjectStore
	out := objectstore.Config{
		Driver: sc.Driver,
		Badger: objectstore.BadgerConfig{
			Dir:            sc.Badger.Dir,
			SyncWrites:     sc.Badger.SyncWrites,
			BlockCacheSize: sc.Badger.BlockCacheSize,
			IndexCacheSize: sc.Badger.IndexCacheSize,
			GCInterval:     sc.Badger.GCInterval,
			GCRatio:        sc.Badger.GCRatio,
		},
		S3: objectstore.S3Config{
			Endpoint:          sc.S3.Endpoint,
			Region:            sc.S3.Region,
			Bucket:            sc.S3.Bucket,
			Prefix:            sc.S3.Prefix,
			AccessKey:         sc.S3.AccessKey,
			SecretKey:         sc.S3.SecretKey,
			UsePathStyle:      sc.S3.UsePathStyle,
			CreateBucket:      sc.S3.CreateBucket,
			RequestsPerSecond: sc.S3.RequestsPerSecond,
		},
	}
	if sc.Badger.EncryptionKey != "" {
		out.Badger.EncryptionKey = []byte(sc.Badger.EncryptionKey)
	}
	return out
}
