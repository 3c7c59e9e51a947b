package objectstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

// Driver names.
const (
	DriverBadger = "badger"
	DriverS3     = "s3"
)

// Store is an ordered key-value store.
//
// Implementations are safe for concurrent use. Get returns
// domain.ErrKeyNotFound for absent keys; every method returns
// domain.ErrStoreClosed after Close.
type Store interface {
	// Get returns a copy of the value stored under key.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan calls fn for every key with the given prefix in ascending
	// byte order. fn returns false to stop. key and value are only valid
	// during the call.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Stats returns storage statistics.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the store.
	Close() error
}

// Stats contains object store statistics. Fields a driver cannot report
// cheaply are left zero.
type Stats struct {
	Driver string `json:"driver" yaml:"driver"`

	// TotalSize is the on-disk size in bytes.
	TotalSize    uint64 `json:"total_size" yaml:"total_size"`
	LSMSize      uint64 `json:"lsm_size" yaml:"lsm_size"`
	ValueLogSize uint64 `json:"value_log_size" yaml:"value_log_size"`

	// LastGCTime is the Unix millisecond time of the last GC run.
	LastGCTime int64  `json:"last_gc_time,omitempty" yaml:"last_gc_time,omitempty"`
	GCRuns     uint64 `json:"gc_runs" yaml:"gc_runs"`

	Gets    uint64 `json:"gets" yaml:"gets"`
	Puts    uint64 `json:"puts" yaml:"puts"`
	Deletes uint64 `json:"deletes" yaml:"deletes"`
}

// Config selects and configures a driver.
type Config struct {
	Driver string
	Badger BadgerConfig
	S3     S3Config
}

// BadgerConfig configures the Badger driver.
type BadgerConfig struct {
	Dir            string
	SyncWrites     bool
	BlockCacheSize int64
	IndexCacheSize int64
	EncryptionKey  []byte

	// GCInterval is the period of value log GC. Zero disables it.
	GCInterval time.Duration
	GCRatio    float64
}

// S3Config configures the S3 driver.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	CreateBucket bool

	// RequestsPerSecond throttles API calls. Zero is unlimited.
	RequestsPerSecond float64
}

// Open opens the store selected by cfg.Driver. reg, if non-nil, receives
// the driver's metrics; they are unregistered again on Close.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, reg prometheus.Registerer) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "objectstore", "driver", cfg.Driver)

	switch cfg.Driver {
	case DriverBadger:
		return OpenBadger(cfg.Badger, logger, reg)
	case DriverS3:
		return OpenS3(ctx, cfg.S3, logger)
	default:
		return nil, domain.ErrUnknownDriver.WithDetailsf("%q", cfg.Driver)
	}
}
