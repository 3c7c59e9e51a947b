// Package pageservice is the request path of the page server. Every
// operation fetches the active repository from a Provider, so callers
// never hold a backend across requests.
//
// GetPage, RelSize, PutWALRecord, PutPageImage, Truncate and
// AdvanceLastValidLSN are the in-process API that a page transport or
// WAL ingestion loop calls; the binary ships no such transport, so only
// Status is reachable from outside, through the admin /v1/status route.
package pageservice
