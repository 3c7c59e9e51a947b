// Package command defines the pageserver command line using
// urfave/cli/v2:
//
//   - root.go: application, global flags
//   - run.go: run the server (default command)
//   - verify.go: validate and print the effective configuration
//   - status.go: query a running server's admin endpoint
//   - version.go: print build information
package command
