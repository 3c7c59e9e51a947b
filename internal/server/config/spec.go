// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for the page server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server" yaml:"server"`
	Repository  RepositorySection  `koanf:"repository" yaml:"repository"`
	ObjectStore ObjectStoreSection `koanf:"object_store" yaml:"object_store"`
	WALRedo     WALRedoSection     `koanf:"walredo" yaml:"walredo"`
	Log         LogSection         `koanf:"log" yaml:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http" yaml:"http"`
}

// HTTPConfig configures the admin HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr" yaml:"addr"`
	TLSCertFile string `koanf:"tls_cert_file" yaml:"tls_cert_file,omitempty"`
	TLSKeyFile  string `koanf:"tls_key_file" yaml:"tls_key_file,omitempty"`

	// RateLimit is the per-client request rate (req/s). Zero disables it.
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `koanf:"rate_burst" yaml:"rate_burst"`
}

// RepositorySection selects and tunes the storage backend.
type RepositorySection struct {
	// Format is the backend kind: "inmemory" or "objectstore".
	Format string `koanf:"format" yaml:"format"`

	// WaitLSNTimeout bounds how long a read waits for WAL to arrive.
	WaitLSNTimeout time.Duration `koanf:"wait_lsn_timeout" yaml:"wait_lsn_timeout"`
}

// ObjectStoreSection configures the object store used by the
// "objectstore" repository format. Ignored otherwise.
type ObjectStoreSection struct {
	// Driver is "badger" or "s3".
	Driver string       `koanf:"driver" yaml:"driver"`
	Badger BadgerConfig `koanf:"badger" yaml:"badger"`
	S3     S3Config     `koanf:"s3" yaml:"s3"`
}

// BadgerConfig configures the local Badger object store.
type BadgerConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`

	SyncWrites     bool  `koanf:"sync_writes" yaml:"sync_writes"`
	BlockCacheSize int64 `koanf:"block_cache_size" yaml:"block_cache_size"`
	IndexCacheSize int64 `koanf:"index_cache_size" yaml:"index_cache_size"`

	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio" yaml:"gc_ratio"`

	// EncryptionKey enables Badger's native encryption at rest (16, 24
	// or 32 bytes).
	EncryptionKey string `koanf:"encryption_key" yaml:"encryption_key,omitempty"`
}

// S3Config configures an S3-compatible object store.
type S3Config struct {
	Endpoint     string `koanf:"endpoint" yaml:"endpoint,omitempty"`
	Region       string `koanf:"region" yaml:"region"`
	Bucket       string `koanf:"bucket" yaml:"bucket"`
	Prefix       string `koanf:"prefix" yaml:"prefix,omitempty"`
	AccessKey    string `koanf:"access_key" yaml:"access_key,omitempty"`
	SecretKey    string `koanf:"secret_key" yaml:"secret_key,omitempty"`
	UsePathStyle bool   `koanf:"use_path_style" yaml:"use_path_style"`
	CreateBucket bool   `koanf:"create_bucket" yaml:"create_bucket"`

	// RequestsPerSecond throttles calls to the S3 API. Zero is unlimited.
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second"`
}

// WALRedoSection configures WAL redo.
type WALRedoSection struct {
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
