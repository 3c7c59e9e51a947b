// Package shutdown coordinates graceful process termination.
//
// Components register named hooks as they start; on SIGINT/SIGTERM (or
// cancellation of the parent context) the hooks run in reverse
// registration order under a shared deadline, so the admin server stops
// accepting requests before the repository it serves is closed.
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdownFunc("repository", reg.Close)
//	err := h.Wait(ctx)
package shutdown
