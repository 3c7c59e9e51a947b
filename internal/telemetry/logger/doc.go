// Package logger provides structured logging for the page server.
//
// It wraps the standard library log/slog:
//
//   - logger.go: Logger interface, handler construction, dynamic level
//   - context.go: request IDs carried in a context.Context
//   - redact.go: Sensitive data redaction (object store credentials)
//
// Components that only need a *slog.Logger take one from Logger.Slog(),
// which shares the handler, the level and the redaction rules.
package logger
