// Package domain defines the core domain models of the page server.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - LSN: WAL positions, printed and parsed in the Postgres hi/lo form
//   - RelTag, BufferTag: relation and page identities with a fixed,
//     order-preserving binary key encoding
//   - WALRecord: a single logged change to one page
//   - Errors: domain error definitions shared by every layer
package domain
