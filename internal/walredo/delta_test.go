package walredo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

func TestEncodeDelta_Layout(t *testing.T) {
	got := EncodeDelta(
		Patch{Offset: 0x0102, Data: []byte{0xAB}},
		Patch{Offset: 8, Data: nil},
	)
	want := []byte{
		0x01, 0x02, 0x00, 0x01, 0xAB,
		0x00, 0x08, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeDelta() = % x, want % x", got, want)
	}
}

func TestNewRecord_MainData(t *testing.T) {
	rec := NewRecord(0x99, false, []byte("header"), Patch{Offset: 1, Data: []byte("x")})
	if rec.MainDataOffset != 6 {
		t.Errorf("MainDataOffset = %d, want 6", rec.MainDataOffset)
	}
	if !bytes.Equal(rec.MainData(), EncodeDelta(Patch{Offset: 1, Data: []byte("x")})) {
		t.Error("MainData() should be the encoded patches")
	}
	if rec.LSN != 0x99 || rec.WillInit {
		t.Errorf("record = %+v", rec)
	}
}

func TestApplyPatches_Overlapping(t *testing.T) {
	page := domain.ZeroPage()
	data := EncodeDelta(
		Patch{Offset: 10, Data: []byte("aaaa")},
		Patch{Offset: 12, Data: []byte("bb")},
	)
	if err := applyPatches(page, data); err != nil {
		t.Fatalf("applyPatches() error = %v", err)
	}
	if got := string(page[10:14]); got != "aabb" {
		t.Errorf("page[10:14] = %q, later patch should win", got)
	}
}

func TestApplyPatches_Empty(t *testing.T) {
	page := domain.ZeroPage()
	if err := applyPatches(page, nil); err != nil {
		t.Errorf("applyPatches(nil) error = %v", err)
	}
}

func TestApplyPatches_LastByte(t *testing.T) {
	page := domain.ZeroPage()
	data := EncodeDelta(Patch{Offset: domain.PageSize - 1, Data: []byte{0x7F}})
	if err := applyPatches(page, data); err != nil {
		t.Fatalf("applyPatches() error = %v", err)
	}
	if page[domain.PageSize-1] != 0x7F {
		t.Error("last byte not patched")
	}
}

func TestEncodeDelta_PatchTooLarge(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("EncodeDelta() did not panic on an oversized patch")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "65536 bytes") {
			t.Errorf("panic = %v, want a message naming the patch size", r)
		}
	}()
	EncodeDelta(Patch{Offset: 0, Data: make([]byte, MaxPatchSize+1)})
}

func TestEncodeDelta_MaxPatch(t *testing.T) {
	got := EncodeDelta(Patch{Offset: 0, Data: make([]byte, MaxPatchSize)})
	if len(got) != patchHeaderSize+MaxPatchSize {
		t.Fatalf("len = %d, want %d", len(got), patchHeaderSize+MaxPatchSize)
	}
	if got[2] != 0xFF || got[3] != 0xFF {
		t.Errorf("length field = % x, want ff ff", got[2:4])
	}
}
