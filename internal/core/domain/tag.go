package domain

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the size of a database page in bytes.
const PageSize = 8192

// Fork numbers of a relation.
const (
	MainForkNum       uint8 = 0
	FSMForkNum        uint8 = 1
	VisibilityForkNum uint8 = 2
	InitForkNum       uint8 = 3
)

// Encoded key sizes.
const (
	RelTagSize    = 13 // forknum(1) + spcnode(4) + dbnode(4) + relnode(4)
	BufferTagSize = RelTagSize + 4
)

// RelTag identifies one fork of a relation.
type RelTag struct {
	ForkNum uint8
	SpcNode uint32
	DBNode  uint32
	RelNode uint32
}

// String implements fmt.Stringer.
func (r RelTag) String() string {
	return fmt.Sprintf("%d/%d/%d.%d", r.SpcNode, r.DBNode, r.RelNode, r.ForkNum)
}

// AppendKey appends the big-endian key encoding of the relation to dst.
//
// Encoded keys compare byte-wise in the same order as the fields, so a
// range scan over an ordered store visits relations in a stable order.
func (r RelTag) AppendKey(dst []byte) []byte {
	dst = append(dst, r.ForkNum)
	dst = binary.BigEndian.AppendUint32(dst, r.SpcNode)
	dst = binary.BigEndian.AppendUint32(dst, r.DBNode)
	dst = binary.BigEndian.AppendUint32(dst, r.RelNode)
	return dst
}

// DecodeRelTag decodes a key produced by AppendKey.
func DecodeRelTag(b []byte) (RelTag, error) {
	if len(b) < RelTagSize {
		return RelTag{}, ErrInvalidArgument.WithDetailsf("rel tag key too short: %d bytes", len(b))
	}
	return RelTag{
		ForkNum: b[0],
		SpcNode: binary.BigEndian.Uint32(b[1:5]),
		DBNode:  binary.BigEndian.Uint32(b[5:9]),
		RelNode: binary.BigEndian.Uint32(b[9:13]),
	}, nil
}

// BufferTag identifies one page of a relation fork.
type BufferTag struct {
	Rel    RelTag
	BlkNum uint32
}

// String implements fmt.Stringer.
func (t BufferTag) String() string {
	return fmt.Sprintf("%s blk %d", t.Rel, t.BlkNum)
}

// AppendKey appends the big-endian key encoding of the page to dst.
func (t BufferTag) AppendKey(dst []byte) []byte {
	dst = t.Rel.AppendKey(dst)
	return binary.BigEndian.AppendUint32(dst, t.BlkNum)
}

// Key returns the encoded key of the page.
func (t BufferTag) Key() []byte {
	return t.AppendKey(make([]byte, 0, BufferTagSize))
}

// DecodeBufferTag decodes a key produced by AppendKey.
func DecodeBufferTag(b []byte) (BufferTag, error) {
	if len(b) < BufferTagSize {
		return BufferTag{}, ErrInvalidArgument.WithDetailsf("buffer tag key too short: %d bytes", len(b))
	}
	rel, err := DecodeRelTag(b)
	if err != nil {
		return BufferTag{}, err
	}
	return BufferTag{
		Rel:    rel,
		BlkNum: binary.BigEndian.Uint32(b[RelTagSize:BufferTagSize]),
	}, nil
}
