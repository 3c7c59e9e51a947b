// Package objectstore provides the ordered key-value object store behind
// the persistent repository.
//
// Two drivers implement Store:
//
//   - badger: an embedded Badger v3 database in a local directory, with
//     background value log GC and size gauges
//   - s3: an S3-compatible bucket; binary keys are hex encoded so that
//     object listing order equals key order
//
// Open dispatches on Config.Driver. Opening is the only fallible step of
// bringing a store up: a missing, unwritable or locked directory, or an
// unreachable bucket, is reported to the caller and nothing is left
// running.
package objectstore
