// Package config defines the server configuration structure.
package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging and printing configuration without exposing
// credentials.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.ObjectStore.S3.AccessKey != "" {
		sanitized.ObjectStore.S3.AccessKey = maskSecret(sanitized.ObjectStore.S3.AccessKey)
	}
	if sanitized.ObjectStore.S3.SecretKey != "" {
		sanitized.ObjectStore.S3.SecretKey = maskSecret(sanitized.ObjectStore.S3.SecretKey)
	}
	if sanitized.ObjectStore.Badger.EncryptionKey != "" {
		sanitized.ObjectStore.Badger.EncryptionKey = maskSecret(sanitized.ObjectStore.Badger.EncryptionKey)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
