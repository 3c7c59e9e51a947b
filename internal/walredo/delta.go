package walredo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

const patchHeaderSize = 4

// MaxPatchSize is the largest Data a single Patch can carry; its length
// is encoded in 16 bits.
const MaxPatchSize = math.MaxUint16

// Patch overwrites len(Data) bytes of the page starting at Offset.
type Patch struct {
	Offset uint16
	Data   []byte
}

// EncodeDelta encodes patches as record main data. It panics if a patch
// carries more than MaxPatchSize bytes; split larger writes into several
// patches.
func EncodeDelta(patches ...Patch) []byte {
	n := 0
	for _, p := range patches {
		if len(p.Data) > MaxPatchSize {
			panic(fmt.Sprintf("walredo: patch at offset %d is %d bytes, limit is %d", p.Offset, len(p.Data), MaxPatchSize))
		}
		n += patchHeaderSize + len(p.Data)
	}
	buf := make([]byte, 0, n)
	for _, p := range patches {
		buf = binary.BigEndian.AppendUint16(buf, p.Offset)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Data)))
		buf = append(buf, p.Data...)
	}
	return buf
}

// NewRecord builds a WAL record whose body is header followed by the
// encoded patches. header is opaque to redo.
func NewRecord(lsn domain.LSN, willInit bool, header []byte, patches ...Patch) domain.WALRecord {
	body := make([]byte, 0, len(header))
	body = append(body, header...)
	body = append(body, EncodeDelta(patches...)...)
	return domain.WALRecord{
		LSN:            lsn,
		WillInit:       willInit,
		Rec:            body,
		MainDataOffset: uint32(len(header)),
	}
}

var errTruncatedPatch = errors.New("truncated patch")

func applyPatches(page, data []byte) error {
	for len(data) > 0 {
		if len(data) < patchHeaderSize {
			return errTruncatedPatch
		}
		off := int(binary.BigEndian.Uint16(data[0:2]))
		n := int(binary.BigEndian.Uint16(data[2:4]))
		data = data[patchHeaderSize:]
		if len(data) < n {
			return errTruncatedPatch
		}
		if off+n > len(page) {
			return fmt.Errorf("patch [%d,%d) outside %d-byte page", off, off+n, len(page))
		}
		copy(page[off:off+n], data[:n])
		data = data[n:]
	}
	return nil
}
