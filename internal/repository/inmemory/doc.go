// Package inmemory is the volatile repository variant. Page and relation
// histories live in sharded maps and are lost when the process exits.
// Construction performs no I/O and cannot fail.
package inmemory
