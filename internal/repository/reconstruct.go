package repository

import (
	"context"
	"sort"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/walredo"
)

// Version is one entry of a page history: either a full image or a WAL
// record.
type Version struct {
	LSN    domain.LSN
	Image  []byte
	Record *domain.WALRecord
}

// IsImage reports whether the version is a full page image.
func (v Version) IsImage() bool {
	return v.Record == nil
}

// initializes reports whether replay can start at this version.
func (v Version) initializes() bool {
	return v.IsImage() || v.Record.WillInit
}

// Less orders versions by LSN; at equal LSN a record sorts before an
// image, since an image at an LSN already includes that LSN's record.
func (v Version) Less(o Version) bool {
	if v.LSN != o.LSN {
		return v.LSN < o.LSN
	}
	return !v.IsImage() && o.IsImage()
}

// InsertVersion inserts v into the sorted history and returns it. An
// entry of the same kind at the same LSN is replaced.
func InsertVersion(history []Version, v Version) []Version {
	i := sort.Search(len(history), func(i int) bool { return !history[i].Less(v) })
	if i < len(history) && history[i].LSN == v.LSN && history[i].IsImage() == v.IsImage() {
		history[i] = v
		return history
	}
	history = append(history, Version{})
	copy(history[i+1:], history[i:])
	history[i] = v
	return history
}

// VersionsAt returns the prefix of the sorted history at or below lsn.
func VersionsAt(history []Version, lsn domain.LSN) []Version {
	n := sort.Search(len(history), func(i int) bool { return history[i].LSN > lsn })
	return history[:n]
}

// Reconstruct rebuilds a page from versions, which must be sorted and
// all at or below lsn. materialize reports whether redo produced a new
// image that the caller should store at lsn.
func Reconstruct(ctx context.Context, redo walredo.Manager, tag domain.BufferTag, lsn domain.LSN, versions []Version) (page []byte, materialize bool, err error) {
	if len(versions) == 0 {
		return domain.ZeroPage(), false, nil
	}

	start := 0
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].initializes() {
			start = i
			break
		}
	}

	var base []byte
	tail := versions[start:]
	if tail[0].IsImage() {
		base = tail[0].Image
		tail = tail[1:]
	}
	if len(tail) == 0 {
		out := make([]byte, len(base))
		copy(out, base)
		return out, false, nil
	}

	records := make([]domain.WALRecord, len(tail))
	for i, v := range tail {
		records[i] = *v.Record
	}

	page, err = redo.RequestRedo(ctx, tag, lsn, base, records)
	if err != nil {
		return nil, false, err
	}
	return page, true, nil
}

// SizeEntry records a relation's size from an LSN onwards. Truncated
// marks an explicit truncation; other entries come from extension.
type SizeEntry struct {
	LSN       domain.LSN
	NBlocks   uint32
	Truncated bool
}

// InsertSize inserts e into the sorted size history, replacing an entry
// at the same LSN.
func InsertSize(history []SizeEntry, e SizeEntry) []SizeEntry {
	i := sort.Search(len(history), func(i int) bool { return history[i].LSN >= e.LSN })
	if i < len(history) && history[i].LSN == e.LSN {
		history[i] = e
		return history
	}
	history = append(history, SizeEntry{})
	copy(history[i+1:], history[i:])
	history[i] = e
	return history
}

// ExtendSize records that the relation has at least nblocks blocks from
// lsn onwards. Entries after lsn are raised to nblocks up to the next
// truncation, so WAL ingested out of LSN order never shrinks a relation.
// It returns the new history and the entries it added or changed.
func ExtendSize(history []SizeEntry, lsn domain.LSN, nblocks uint32) ([]SizeEntry, []SizeEntry) {
	if cur, _ := SizeAt(history, lsn); nblocks <= cur {
		return history, nil
	}

	var changed []SizeEntry
	i := sort.Search(len(history), func(i int) bool { return history[i].LSN >= lsn })
	if i < len(history) && history[i].LSN == lsn {
		history[i].NBlocks = nblocks
	} else {
		history = append(history, SizeEntry{})
		copy(history[i+1:], history[i:])
		history[i] = SizeEntry{LSN: lsn, NBlocks: nblocks}
	}
	changed = append(changed, history[i])

	for j := i + 1; j < len(history) && !history[j].Truncated; j++ {
		if history[j].NBlocks < nblocks {
			history[j].NBlocks = nblocks
			changed = append(changed, history[j])
		}
	}
	return history, changed
}

// SizeAt returns the newest size at or below lsn.
func SizeAt(history []SizeEntry, lsn domain.LSN) (uint32, bool) {
	n := sort.Search(len(history), func(i int) bool { return history[i].LSN > lsn })
	if n == 0 {
		return 0, false
	}
	return history[n-1].NBlocks, true
}
