// Package repotest holds behaviour tests shared by every
// repository.Repository implementation.
package repotest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/walredo"
)

// Factory builds a fresh, empty repository. The test owns it and closes
// it.
type Factory func(t *testing.T) repository.Repository

// Rel and Tag are fixtures used by the shared tests.
var (
	Rel = domain.RelTag{SpcNode: 1663, DBNode: 13010, RelNode: 16384, ForkNum: domain.MainForkNum}
	Tag = domain.BufferTag{Rel: Rel, BlkNum: 2}
)

// Run executes the shared behaviour tests.
func Run(t *testing.T, kind repository.Kind, newRepo Factory) {
	ctx := context.Background()

	t.Run("kind and id", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()
		if r.Kind() != kind {
			t.Errorf("Kind() = %v, want %v", r.Kind(), kind)
		}
		if r.ID() == "" {
			t.Error("ID() is empty")
		}
		other := newRepo(t)
		defer other.Close()
		if other.ID() == r.ID() {
			t.Error("two instances share an ID")
		}
	})

	t.Run("missing page reads as zeros", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()
		r.AdvanceLastValidLSN(0x100)

		page, err := r.GetPageAtLSN(ctx, Tag, 0x100)
		if err != nil {
			t.Fatalf("GetPageAtLSN() error = %v", err)
		}
		if !bytes.Equal(page, domain.ZeroPage()) {
			t.Error("page without history should be zeros")
		}
	})

	t.Run("image then records", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		img := bytes.Repeat([]byte{0x11}, domain.PageSize)
		mustPut(t, r.PutPageImage(ctx, Tag, 0x10, img))
		mustPut(t, r.PutWALRecord(ctx, Tag, walredo.NewRecord(0x20, false, []byte("h"), walredo.Patch{Offset: 0, Data: []byte("AB")})))
		mustPut(t, r.PutWALRecord(ctx, Tag, walredo.NewRecord(0x30, false, nil, walredo.Patch{Offset: 1, Data: []byte("C")})))
		r.AdvanceLastValidLSN(0x30)

		tests := []struct {
			lsn  domain.LSN
			want []byte
		}{
			{0x10, []byte{0x11, 0x11}},
			{0x1F, []byte{0x11, 0x11}},
			{0x20, []byte("AB")},
			{0x30, []byte("AC")},
		}
		for _, tt := range tests {
			page, err := r.GetPageAtLSN(ctx, Tag, tt.lsn)
			if err != nil {
				t.Fatalf("GetPageAtLSN(%s) error = %v", tt.lsn, err)
			}
			if !bytes.Equal(page[:2], tt.want) {
				t.Errorf("GetPageAtLSN(%s)[:2] = %q, want %q", tt.lsn, page[:2], tt.want)
			}
		}

		// A second read is served from the materialized image.
		page, err := r.GetPageAtLSN(ctx, Tag, 0x30)
		if err != nil || !bytes.Equal(page[:2], []byte("AC")) {
			t.Errorf("second GetPageAtLSN() = %q, %v", page[:2], err)
		}
	})

	t.Run("will init record", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		mustPut(t, r.PutWALRecord(ctx, Tag, walredo.NewRecord(0x40, true, nil, walredo.Patch{Offset: 10, Data: []byte("x")})))
		r.AdvanceLastValidLSN(0x40)

		page, err := r.GetPageAtLSN(ctx, Tag, 0x40)
		if err != nil {
			t.Fatalf("GetPageAtLSN() error = %v", err)
		}
		if page[10] != 'x' || page[0] != 0 {
			t.Error("WillInit record should build on a zero page")
		}
	})

	t.Run("record without base", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		mustPut(t, r.PutWALRecord(ctx, Tag, walredo.NewRecord(0x40, false, nil)))
		r.AdvanceLastValidLSN(0x40)

		if _, err := r.GetPageAtLSN(ctx, Tag, 0x40); !errors.Is(err, domain.ErrNoBaseImage) {
			t.Errorf("GetPageAtLSN() error = %v, want ErrNoBaseImage", err)
		}
	})

	t.Run("invalid image", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()
		if err := r.PutPageImage(ctx, Tag, 0x10, []byte("short")); !errors.Is(err, domain.ErrInvalidPageImage) {
			t.Errorf("PutPageImage() error = %v, want ErrInvalidPageImage", err)
		}
	})

	t.Run("relation size", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		mustPut(t, r.PutWALRecord(ctx, domain.BufferTag{Rel: Rel, BlkNum: 0}, walredo.NewRecord(0x10, true, nil)))
		mustPut(t, r.PutWALRecord(ctx, domain.BufferTag{Rel: Rel, BlkNum: 4}, walredo.NewRecord(0x20, true, nil)))
		mustPut(t, r.PutWALRecord(ctx, domain.BufferTag{Rel: Rel, BlkNum: 1}, walredo.NewRecord(0x30, true, nil)))
		mustPut(t, r.PutTruncation(ctx, Rel, 0x40, 2))
		r.AdvanceLastValidLSN(0x40)

		tests := []struct {
			lsn  domain.LSN
			want uint32
		}{
			{0x10, 1},
			{0x20, 5},
			{0x30, 5},
			{0x40, 2},
		}
		for _, tt := range tests {
			n, err := r.GetRelSize(ctx, Rel, tt.lsn)
			if err != nil {
				t.Fatalf("GetRelSize(%s) error = %v", tt.lsn, err)
			}
			if n != tt.want {
				t.Errorf("GetRelSize(%s) = %d, want %d", tt.lsn, n, tt.want)
			}
		}

		if _, err := r.GetRelSize(ctx, Rel, 0x05); !errors.Is(err, domain.ErrRelationNotFound) {
			t.Errorf("GetRelSize before creation error = %v, want ErrRelationNotFound", err)
		}
		other := domain.RelTag{SpcNode: 1, DBNode: 2, RelNode: 3}
		if _, err := r.GetRelSize(ctx, other, 0x40); !errors.Is(err, domain.ErrRelationNotFound) {
			t.Errorf("GetRelSize(unknown) error = %v, want ErrRelationNotFound", err)
		}
	})

	t.Run("relation size with out of order wal", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		mustPut(t, r.PutWALRecord(ctx, domain.BufferTag{Rel: Rel, BlkNum: 5}, walredo.NewRecord(0x10, true, nil)))
		mustPut(t, r.PutWALRecord(ctx, domain.BufferTag{Rel: Rel, BlkNum: 9}, walredo.NewRecord(0x05, true, nil)))
		mustPut(t, r.PutTruncation(ctx, Rel, 0x30, 3))
		mustPut(t, r.PutWALRecord(ctx, domain.BufferTag{Rel: Rel, BlkNum: 12}, walredo.NewRecord(0x08, true, nil)))
		r.AdvanceLastValidLSN(0x40)

		tests := []struct {
			lsn  domain.LSN
			want uint32
		}{
			{0x05, 10},
			{0x08, 13},
			{0x10, 13},
			{0x20, 13},
			{0x30, 3},
			{0x40, 3},
		}
		for _, tt := range tests {
			n, err := r.GetRelSize(ctx, Rel, tt.lsn)
			if err != nil {
				t.Fatalf("GetRelSize(%s) error = %v", tt.lsn, err)
			}
			if n != tt.want {
				t.Errorf("GetRelSize(%s) = %d, want %d", tt.lsn, n, tt.want)
			}
		}
	})

	t.Run("last valid lsn", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		r.AdvanceLastValidLSN(0x50)
		r.AdvanceLastValidLSN(0x20)
		if got := r.LastValidLSN(); got != 0x50 {
			t.Errorf("LastValidLSN() = %s, want 0/50", got)
		}
	})

	t.Run("read waits for lsn", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		done := make(chan error, 1)
		go func() {
			_, err := r.GetPageAtLSN(ctx, Tag, 0x80)
			done <- err
		}()

		select {
		case err := <-done:
			t.Fatalf("GetPageAtLSN() returned before lsn was valid: %v", err)
		case <-time.After(30 * time.Millisecond):
		}

		r.AdvanceLastValidLSN(0x80)
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("GetPageAtLSN() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("GetPageAtLSN() did not wake")
		}
	})

	t.Run("read cancelled", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if _, err := r.GetPageAtLSN(cctx, Tag, 0x80); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("GetPageAtLSN() error = %v, want deadline exceeded", err)
		}
	})

	t.Run("concurrent writers and readers", func(t *testing.T) {
		r := newRepo(t)
		defer r.Close()

		const blocks = 8
		var wg sync.WaitGroup
		for b := uint32(0); b < blocks; b++ {
			wg.Add(1)
			go func(b uint32) {
				defer wg.Done()
				tag := domain.BufferTag{Rel: Rel, BlkNum: b}
				rec := walredo.NewRecord(domain.LSN(0x10+b), true, nil, walredo.Patch{Offset: 0, Data: []byte{byte(b)}})
				if err := r.PutWALRecord(ctx, tag, rec); err != nil {
					t.Errorf("PutWALRecord() error = %v", err)
				}
			}(b)
		}
		wg.Wait()
		r.AdvanceLastValidLSN(0x100)

		for b := uint32(0); b < blocks; b++ {
			wg.Add(1)
			go func(b uint32) {
				defer wg.Done()
				page, err := r.GetPageAtLSN(ctx, domain.BufferTag{Rel: Rel, BlkNum: b}, 0x100)
				if err != nil {
					t.Errorf("GetPageAtLSN() error = %v", err)
					return
				}
				if page[0] != byte(b) {
					t.Errorf("block %d page[0] = %d", b, page[0])
				}
			}(b)
		}
		wg.Wait()

		n, err := r.GetRelSize(ctx, Rel, 0x100)
		if err != nil || n != blocks {
			t.Errorf("GetRelSize() = %d, %v; want %d", n, err, blocks)
		}
	})

	t.Run("closed", func(t *testing.T) {
		r := newRepo(t)
		if err := r.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if _, err := r.GetPageAtLSN(ctx, Tag, 0); !errors.Is(err, domain.ErrRepositoryClosed) {
			t.Errorf("GetPageAtLSN() after Close error = %v, want ErrRepositoryClosed", err)
		}
		if err := r.PutTruncation(ctx, Rel, 1, 1); !errors.Is(err, domain.ErrRepositoryClosed) {
			t.Errorf("PutTruncation() after Close error = %v, want ErrRepositoryClosed", err)
		}
		if err := r.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}

func mustPut(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("put error = %v", err)
	}
}
