package repository

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

// Kind is the closed set of backend variants.
type Kind int

// Backend kinds.
const (
	KindInMemory Kind = iota + 1
	KindObjectStore
)

// ErrUnknownKind is returned by ParseKind for unrecognized formats.
var ErrUnknownKind = domain.NewDomainError("PS-REPO-4002", "unknown repository format")

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInMemory:
		return "inmemory"
	case KindObjectStore:
		return "objectstore"
	default:
		return "unknown"
	}
}

// ParseKind parses a configured repository format.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inmemory":
		return KindInMemory, nil
	case "objectstore":
		return KindObjectStore, nil
	default:
		return 0, ErrUnknownKind.WithDetailsf("%q", s)
	}
}

// Repository stores versioned pages and relation sizes.
//
// Implementations are safe for concurrent use.
type Repository interface {
	// Kind reports the backend variant.
	Kind() Kind

	// ID is a unique identifier of this instance.
	ID() string

	// GetPageAtLSN returns the page as of lsn, waiting until lsn is
	// valid. A page with no history reads as zeros.
	GetPageAtLSN(ctx context.Context, tag domain.BufferTag, lsn domain.LSN) ([]byte, error)

	// GetRelSize returns the relation's size in blocks as of lsn.
	GetRelSize(ctx context.Context, rel domain.RelTag, lsn domain.LSN) (uint32, error)

	// PutWALRecord appends a record to the page history and extends
	// the relation to cover the block.
	PutWALRecord(ctx context.Context, tag domain.BufferTag, rec domain.WALRecord) error

	// PutPageImage stores a full page image at lsn.
	PutPageImage(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, img []byte) error

	// PutTruncation sets the relation's size at lsn.
	PutTruncation(ctx context.Context, rel domain.RelTag, lsn domain.LSN, nblocks uint32) error

	// AdvanceLastValidLSN marks all WAL up to lsn as ingested. It never
	// moves backwards.
	AdvanceLastValidLSN(lsn domain.LSN)

	// LastValidLSN returns the newest fully ingested LSN.
	LastValidLSN() domain.LSN

	// WaitLSN blocks until LastValidLSN >= lsn.
	WaitLSN(ctx context.Context, lsn domain.LSN) error

	// Close releases the repository's resources.
	Close() error
}

// NewID returns a new time-ordered instance identifier.
func NewID() string {
	return ulid.Make().String()
}

// ValidateImage checks that img is exactly one page.
func ValidateImage(tag domain.BufferTag, img []byte) error {
	if len(img) != domain.PageSize {
		return domain.ErrInvalidPageImage.WithDetailsf("%s: %d bytes, want %d", tag, len(img), domain.PageSize)
	}
	return nil
}
