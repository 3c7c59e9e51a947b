// Package objectrepo is the persistent repository variant, layered on an
// objectstore.Store.
//
// Key layout (all integers big endian, so keys sort by page then LSN):
//
//	'p' | BufferTag (17) | LSN (8) | kind (1)  -> page version
//	'r' | RelTag (13)    | LSN (8)             -> relation size
//	'm' | "last_valid_lsn"                     -> LSN (8)
//
// Version values are protobuf wire-format messages; page images are zstd
// compressed when that makes them smaller. The repository owns the store
// and closes it on Close.
package objectrepo
