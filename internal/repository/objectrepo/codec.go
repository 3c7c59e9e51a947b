package objectrepo

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
)

const (
	prefixPage byte = 'p'
	prefixRel  byte = 'r'
	prefixMeta byte = 'm'
)

// Version kinds, in the order they sort at equal LSN.
const (
	kindRecord byte = 1
	kindImage  byte = 2
)

const lsnSize = 8

var lastValidLSNKey = append([]byte{prefixMeta}, "last_valid_lsn"...)

func pagePrefix(tag domain.BufferTag) []byte {
	key := make([]byte, 0, 1+domain.BufferTagSize+lsnSize+1)
	key = append(key, prefixPage)
	return tag.AppendKey(key)
}

func pageKey(tag domain.BufferTag, lsn domain.LSN, kind byte) []byte {
	key := pagePrefix(tag)
	key = binary.BigEndian.AppendUint64(key, uint64(lsn))
	return append(key, kind)
}

// parsePageKey returns the LSN and kind of a key produced by pageKey.
func parsePageKey(key []byte) (domain.LSN, byte, error) {
	if len(key) != 1+domain.BufferTagSize+lsnSize+1 || key[0] != prefixPage {
		return 0, 0, domain.ErrCorruptVersion.WithDetailsf("bad page key %x", key)
	}
	off := 1 + domain.BufferTagSize
	return domain.LSN(binary.BigEndian.Uint64(key[off : off+lsnSize])), key[off+lsnSize], nil
}

func relPrefix(rel domain.RelTag) []byte {
	key := make([]byte, 0, 1+domain.RelTagSize+lsnSize)
	key = append(key, prefixRel)
	return rel.AppendKey(key)
}

func relKey(rel domain.RelTag, lsn domain.LSN) []byte {
	return binary.BigEndian.AppendUint64(relPrefix(rel), uint64(lsn))
}

func parseRelKey(key []byte) (domain.LSN, error) {
	if len(key) != 1+domain.RelTagSize+lsnSize || key[0] != prefixRel {
		return 0, domain.ErrCorruptVersion.WithDetailsf("bad relation key %x", key)
	}
	return domain.LSN(binary.BigEndian.Uint64(key[1+domain.RelTagSize:])), nil
}

// Field numbers of the version message.
const (
	fieldPayload        protowire.Number = 1
	fieldWillInit       protowire.Number = 2
	fieldMainDataOffset protowire.Number = 3
	fieldCompression    protowire.Number = 4
)

// Field numbers of the relation size message.
const (
	fieldNBlocks   protowire.Number = 1
	fieldTruncated protowire.Number = 2
)

const (
	compressionNone uint64 = 0
	compressionZstd uint64 = 1
)

// codec encodes page versions. It is safe for concurrent use.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *codec) encodeImage(img []byte) []byte {
	payload, compression := img, compressionNone
	if z := c.enc.EncodeAll(img, nil); len(z) < len(img) {
		payload, compression = z, compressionZstd
	}

	var b []byte
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	if compression != compressionNone {
		b = protowire.AppendTag(b, fieldCompression, protowire.VarintType)
		b = protowire.AppendVarint(b, compression)
	}
	return b
}

func (c *codec) encodeRecord(rec domain.WALRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, rec.Rec)
	if rec.WillInit {
		b = protowire.AppendTag(b, fieldWillInit, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if rec.MainDataOffset != 0 {
		b = protowire.AppendTag(b, fieldMainDataOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(rec.MainDataOffset))
	}
	return b
}

// decodeVersion decodes the value stored under a page key.
func (c *codec) decodeVersion(lsn domain.LSN, kind byte, b []byte) (repository.Version, error) {
	var (
		payload        []byte
		willInit       bool
		mainDataOffset uint64
		compression    uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return repository.Version{}, corrupt(lsn, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldPayload && typ == protowire.BytesType:
			payload, n = protowire.ConsumeBytes(b)
		case num == fieldWillInit && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			willInit = protowire.DecodeBool(v)
		case num == fieldMainDataOffset && typ == protowire.VarintType:
			mainDataOffset, n = protowire.ConsumeVarint(b)
		case num == fieldCompression && typ == protowire.VarintType:
			compression, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return repository.Version{}, corrupt(lsn, protowire.ParseError(n))
		}
		b = b[n:]
	}

	switch kind {
	case kindImage:
		img := payload
		switch compression {
		case compressionNone:
			img = append([]byte(nil), payload...)
		case compressionZstd:
			var err error
			if img, err = c.dec.DecodeAll(payload, make([]byte, 0, domain.PageSize)); err != nil {
				return repository.Version{}, corrupt(lsn, err)
			}
		default:
			return repository.Version{}, corrupt(lsn, fmt.Errorf("unknown compression %d", compression))
		}
		if len(img) != domain.PageSize {
			return repository.Version{}, corrupt(lsn, fmt.Errorf("image is %d bytes", len(img)))
		}
		return repository.Version{LSN: lsn, Image: img}, nil

	case kindRecord:
		rec := &domain.WALRecord{
			LSN:            lsn,
			WillInit:       willInit,
			Rec:            append([]byte(nil), payload...),
			MainDataOffset: uint32(mainDataOffset),
		}
		return repository.Version{LSN: lsn, Record: rec}, nil

	default:
		return repository.Version{}, corrupt(lsn, fmt.Errorf("unknown version kind %d", kind))
	}
}

func encodeSize(e repository.SizeEntry) []byte {
	b := protowire.AppendTag(nil, fieldNBlocks, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.NBlocks))
	if e.Truncated {
		b = protowire.AppendTag(b, fieldTruncated, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func decodeSize(b []byte) (nblocks uint32, truncated bool, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, false, protowire.ParseError(n)
		}
		b = b[n:]
		var v uint64
		switch {
		case num == fieldNBlocks && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			nblocks = uint32(v)
		case num == fieldTruncated && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			truncated = v != 0
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return 0, false, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nblocks, truncated, nil
}

func encodeLSN(lsn domain.LSN) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(lsn))
}

func decodeLSN(b []byte) (domain.LSN, error) {
	if len(b) != lsnSize {
		return 0, domain.ErrCorruptVersion.WithDetailsf("last valid lsn is %d bytes", len(b))
	}
	return domain.LSN(binary.BigEndian.Uint64(b)), nil
}

func corrupt(lsn domain.LSN, err error) error {
	return domain.ErrCorruptVersion.WithDetailsf("version at %s", lsn).WithCause(err)
}
