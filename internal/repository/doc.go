// Package repository defines the page storage backend contract shared by
// the volatile (inmemory) and persistent (objectrepo) variants.
//
// A repository stores, per page, a history of versions: full page images
// and WAL records, each at an LSN. GetPageAtLSN rebuilds the page as of
// an LSN from the newest image (or initializing record) at or below it
// plus the records that follow, using a walredo.Manager. Rebuilt images
// are written back so the next read at that LSN needs no redo.
//
// Relation sizes are tracked per fork as a history of (LSN, nblocks).
package repository
