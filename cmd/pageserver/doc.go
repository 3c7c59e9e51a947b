// Package main provides the entry point for pageserver.
//
// pageserver keeps page versions in a single repository backend, either
// in memory or in an object store, and reconstructs page images at any
// LSN with WAL redo. The admin HTTP surface exposes health, readiness,
// status and Prometheus metrics.
package main
