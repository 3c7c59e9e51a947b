// Package registry holds the page server's single storage backend.
//
// A Registry is constructed in main, initialized once from configuration
// with Init, and then shared with every request path, which obtains the
// backend with Get:
//
//	reg := registry.New(registry.WithLogger(logger), registry.WithMetrics(metrics))
//	if err := reg.Init(ctx, cfg); err != nil {
//		// fatal: the process cannot serve without a backend
//	}
//	repo := reg.Get()
//
// Get is cheap (one read lock) and panics if Init has not succeeded.
// Backend construction is done by a Builder whose Factories can be
// replaced to add backends or inject fakes.
package registry
