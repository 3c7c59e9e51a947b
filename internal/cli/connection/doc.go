// Package connection is the CLI's client for a running page server's
// admin HTTP endpoints.
package connection
