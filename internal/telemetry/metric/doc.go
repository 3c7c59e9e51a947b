// Package metric provides Prometheus metrics for the page server.
//
//   - prometheus.go: the process metric registry and its HTTP handler
//   - collector.go: a collector that reads live repository state at
//     scrape time
//
// Every process builds exactly one Registry and hands it to the
// components that record into it; nothing registers with the Prometheus
// default registerer.
package metric
