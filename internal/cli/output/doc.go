// Package output formats command output for the pageserver CLI.
//
//   - formatter.go: Formatter interface and factory
//   - json.go: JSON output formatting
//   - yaml.go: YAML output formatting
package output
