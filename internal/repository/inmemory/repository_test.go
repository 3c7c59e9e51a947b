package inmemory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/repository/repotest"
	"github.com/yndnr/pageserver-go/internal/walredo"
)

func newTestRepo(t *testing.T) repository.Repository {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{WaitLSNTimeout: 5 * time.Second}, walredo.New(walredo.Config{Timeout: time.Second}, logger, nil), logger)
}

func TestRepository(t *testing.T) {
	repotest.Run(t, repository.KindInMemory, newTestRepo)
}

func TestRepository_WaitTimeout(t *testing.T) {
	r := New(Config{WaitLSNTimeout: 20 * time.Millisecond}, walredo.New(walredo.Config{}, nil, nil), nil)
	defer r.Close()

	_, err := r.GetPageAtLSN(context.Background(), repotest.Tag, 0x10)
	if err == nil || domain.GetErrorCode(err) != domain.ErrLSNTimeout.Code {
		t.Errorf("GetPageAtLSN() error = %v, want ErrLSNTimeout", err)
	}
}

func TestRepository_Materializes(t *testing.T) {
	r := New(Config{}, walredo.New(walredo.Config{}, nil, nil), nil)
	defer r.Close()
	ctx := context.Background()

	if err := r.PutWALRecord(ctx, repotest.Tag, walredo.NewRecord(0x10, true, nil)); err != nil {
		t.Fatalf("PutWALRecord() error = %v", err)
	}
	r.AdvanceLastValidLSN(0x10)
	if _, err := r.GetPageAtLSN(ctx, repotest.Tag, 0x10); err != nil {
		t.Fatalf("GetPageAtLSN() error = %v", err)
	}

	h, _ := r.pages.Get(repotest.Tag)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.versions) != 2 || !h.versions[1].IsImage() {
		t.Errorf("history = %d versions, want record followed by materialized image", len(h.versions))
	}
}

func TestRepository_CopiesInput(t *testing.T) {
	r := New(Config{}, walredo.New(walredo.Config{}, nil, nil), nil)
	defer r.Close()
	ctx := context.Background()

	img := domain.ZeroPage()
	if err := r.PutPageImage(ctx, repotest.Tag, 0x10, img); err != nil {
		t.Fatalf("PutPageImage() error = %v", err)
	}
	img[0] = 0xFF
	r.AdvanceLastValidLSN(0x10)

	page, err := r.GetPageAtLSN(ctx, repotest.Tag, 0x10)
	if err != nil {
		t.Fatalf("GetPageAtLSN() error = %v", err)
	}
	if page[0] != 0 {
		t.Error("caller's buffer should not alias stored image")
	}
}

func TestRepository_Stats(t *testing.T) {
	r := New(Config{}, walredo.New(walredo.Config{}, nil, nil), nil)
	ctx := context.Background()
	_ = r.PutWALRecord(ctx, repotest.Tag, walredo.NewRecord(1, true, nil))

	pages, rels := r.Stats()
	if pages != 1 || rels != 1 {
		t.Errorf("Stats() = %d pages, %d rels; want 1, 1", pages, rels)
	}
	r.Close()
	if pages, _ := r.Stats(); pages != 0 {
		t.Error("Close should drop data")
	}
}
