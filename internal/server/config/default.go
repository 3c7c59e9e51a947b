// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr  = "127.0.0.1:9898"
	DefaultRateLimit = 100
	DefaultRateBurst = 200

	DefaultRepositoryFormat = "inmemory"
	DefaultWaitLSNTimeout   = 60 * time.Second

	DefaultObjectStoreDriver = "badger"
	DefaultBadgerDir         = "/var/lib/pageserver/objects"
	DefaultBlockCacheSize    = 256 << 20
	DefaultIndexCacheSize    = 64 << 20
	DefaultGCInterval        = 5 * time.Minute
	DefaultGCRatio           = 0.5
	DefaultS3Region          = "us-east-1"

	DefaultRedoTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:      DefaultHTTPAddr,
				RateLimit: DefaultRateLimit,
				RateBurst: DefaultRateBurst,
			},
		},
		Repository: RepositorySection{
			Format:         DefaultRepositoryFormat,
			WaitLSNTimeout: DefaultWaitLSNTimeout,
		},
		ObjectStore: ObjectStoreSection{
			Driver: DefaultObjectStoreDriver,
			Badger: BadgerConfig{
				Dir:            DefaultBadgerDir,
				BlockCacheSize: DefaultBlockCacheSize,
				IndexCacheSize: DefaultIndexCacheSize,
				GCInterval:     DefaultGCInterval,
				GCRatio:        DefaultGCRatio,
			},
			S3: S3Config{
				Region: DefaultS3Region,
			},
		},
		WALRedo: WALRedoSection{
			Timeout: DefaultRedoTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
