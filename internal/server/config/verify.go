// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/telemetry/logger"
)

// Verify validates the configuration.
//
// It checks shape only; it never touches the filesystem or the network.
// Whether the object store can actually be opened is decided by
// registry initialization.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	kind, err := repository.ParseKind(cfg.Repository.Format)
	if err != nil {
		return fmt.Errorf("repository.format: %w", err)
	}
	if cfg.Repository.WaitLSNTimeout <= 0 {
		return errors.New("repository.wait_lsn_timeout must be positive")
	}
	if kind == repository.KindObjectStore {
		if err := verifyObjectStore(&cfg.ObjectStore); err != nil {
			return err
		}
	}
	if cfg.WALRedo.Timeout <= 0 {
		return errors.New("walredo.timeout must be positive")
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		return errors.New("server.http.rate_burst must be at least 1 when rate_limit is set")
	}
	return nil
}

func verifyObjectStore(cfg *ObjectStoreSection) error {
	switch cfg.Driver {
	case "badger":
		if cfg.Badger.Dir == "" {
			return errors.New("object_store.badger.dir is required")
		}
		if cfg.Badger.GCRatio <= 0 || cfg.Badger.GCRatio >= 1 {
			return errors.New("object_store.badger.gc_ratio must be in (0, 1)")
		}
		switch len(cfg.Badger.EncryptionKey) {
		case 0, 16, 24, 32:
		default:
			return errors.New("object_store.badger.encryption_key must be 16, 24 or 32 bytes")
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			return errors.New("object_store.s3.bucket is required")
		}
		if (cfg.S3.AccessKey == "") != (cfg.S3.SecretKey == "") {
			return errors.New("object_store.s3.access_key and secret_key must be set together")
		}
		if cfg.S3.RequestsPerSecond < 0 {
			return errors.New("object_store.s3.requests_per_second must not be negative")
		}
	default:
		return fmt.Errorf("object_store.driver: unknown driver %q", cfg.Driver)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
}
