// Package httpserver provides the admin HTTP/HTTPS server of the page
// server.
//
// Endpoints:
//
//   - /health: liveness
//   - /ready: 200 once the repository is initialized
//   - /v1/status: repository kind, instance id, last valid LSN, build
//   - /metrics: Prometheus metrics
//
// Middleware: Recover, RequestID, AccessLog, RateLimit.
package httpserver
