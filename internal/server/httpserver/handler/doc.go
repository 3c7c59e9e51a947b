// Package handler provides the admin HTTP handlers of the page server.
//
// Endpoints:
//
//   - health.go: liveness and readiness checks
//   - status.go: repository and build status
//
// Every JSON response uses the Response envelope.
package handler
