// Package buildinfo exposes the binary's version, commit and toolchain.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/pageserver-go/internal/infra/buildinfo.Version=v0.3.0"
//
// When ldflags are absent the commit and Go version fall back to what the
// toolchain embedded (runtime/debug.ReadBuildInfo).
package buildinfo
