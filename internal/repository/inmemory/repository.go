package inmemory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/walredo"
	"github.com/yndnr/pageserver-go/pkg/cmap"
)

// Config configures the in-memory repository.
type Config struct {
	// WaitLSNTimeout bounds how long GetPageAtLSN waits for WAL.
	WaitLSNTimeout time.Duration

	// Shards is the shard count of the page and relation maps (power
	// of two; zero selects the default).
	Shards int
}

type pageHistory struct {
	mu       sync.Mutex
	versions []repository.Version
}

type relHistory struct {
	mu    sync.Mutex
	sizes []repository.SizeEntry
}

// Repository is the volatile repository.
type Repository struct {
	id          string
	redo        walredo.Manager
	waitTimeout time.Duration
	logger      *slog.Logger

	pages *cmap.Map[domain.BufferTag, *pageHistory]
	rels  *cmap.Map[domain.RelTag, *relHistory]
	lsn   *repository.LSNTracker

	closed atomic.Bool
}

var _ repository.Repository = (*Repository)(nil)

// New creates an empty repository that replays WAL through redo.
func New(cfg Config, redo walredo.Manager, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	id := repository.NewID()
	return &Repository{
		id:          id,
		redo:        redo,
		waitTimeout: cfg.WaitLSNTimeout,
		logger:      logger.With("repository", id, "kind", repository.KindInMemory.String()),
		pages:       cmap.NewWithShards[domain.BufferTag, *pageHistory](cfg.Shards, hashBufferTag),
		rels:        cmap.NewWithShards[domain.RelTag, *relHistory](cfg.Shards, hashRelTag),
		lsn:         repository.NewLSNTracker(domain.InvalidLSN),
	}
}

func hashBufferTag(t domain.BufferTag) uint64 {
	var buf [domain.BufferTagSize]byte
	return murmur3.Sum64(t.AppendKey(buf[:0]))
}

func hashRelTag(r domain.RelTag) uint64 {
	var buf [domain.RelTagSize]byte
	return murmur3.Sum64(r.AppendKey(buf[:0]))
}

// Kind implements repository.Repository.
func (r *Repository) Kind() repository.Kind { return repository.KindInMemory }

// ID implements repository.Repository.
func (r *Repository) ID() string { return r.id }

func (r *Repository) check() error {
	if r.closed.Load() {
		return domain.ErrRepositoryClosed
	}
	return nil
}

// GetPageAtLSN implements repository.Repository.
func (r *Repository) GetPageAtLSN(ctx context.Context, tag domain.BufferTag, lsn domain.LSN) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := r.WaitLSN(ctx, lsn); err != nil {
		return nil, err
	}

	h, ok := r.pages.Get(tag)
	if !ok {
		return domain.ZeroPage(), nil
	}

	h.mu.Lock()
	versions := append([]repository.Version(nil), repository.VersionsAt(h.versions, lsn)...)
	h.mu.Unlock()

	page, materialize, err := repository.Reconstruct(ctx, r.redo, tag, lsn, versions)
	if err != nil {
		return nil, err
	}
	if materialize {
		img := make([]byte, len(page))
		copy(img, page)
		h.mu.Lock()
		h.versions = repository.InsertVersion(h.versions, repository.Version{LSN: lsn, Image: img})
		h.mu.Unlock()
	}
	return page, nil
}

// GetRelSize implements repository.Repository.
func (r *Repository) GetRelSize(ctx context.Context, rel domain.RelTag, lsn domain.LSN) (uint32, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	if err := r.WaitLSN(ctx, lsn); err != nil {
		return 0, err
	}

	h, ok := r.rels.Get(rel)
	if !ok {
		return 0, domain.ErrRelationNotFound.WithDetailsf("%s at %s", rel, lsn)
	}
	h.mu.Lock()
	n, ok := repository.SizeAt(h.sizes, lsn)
	h.mu.Unlock()
	if !ok {
		return 0, domain.ErrRelationNotFound.WithDetailsf("%s at %s", rel, lsn)
	}
	return n, nil
}

// PutWALRecord implements repository.Repository.
func (r *Repository) PutWALRecord(ctx context.Context, tag domain.BufferTag, rec domain.WALRecord) error {
	if err := r.check(); err != nil {
		return err
	}
	rec.Rec = append([]byte(nil), rec.Rec...)
	r.addVersion(tag, repository.Version{LSN: rec.LSN, Record: &rec})
	r.extendRel(tag, rec.LSN)
	return nil
}

// PutPageImage implements repository.Repository.
func (r *Repository) PutPageImage(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, img []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := repository.ValidateImage(tag, img); err != nil {
		return err
	}
	r.addVersion(tag, repository.Version{LSN: lsn, Image: append([]byte(nil), img...)})
	r.extendRel(tag, lsn)
	return nil
}

// PutTruncation implements repository.Repository.
func (r *Repository) PutTruncation(ctx context.Context, rel domain.RelTag, lsn domain.LSN, nblocks uint32) error {
	if err := r.check(); err != nil {
		return err
	}
	h := r.relFor(rel)
	h.mu.Lock()
	h.sizes = repository.InsertSize(h.sizes, repository.SizeEntry{LSN: lsn, NBlocks: nblocks, Truncated: true})
	h.mu.Unlock()
	return nil
}

func (r *Repository) addVersion(tag domain.BufferTag, v repository.Version) {
	h, ok := r.pages.Get(tag)
	if !ok {
		h, _ = r.pages.GetOrSet(tag, &pageHistory{})
	}
	h.mu.Lock()
	h.versions = repository.InsertVersion(h.versions, v)
	h.mu.Unlock()
}

func (r *Repository) relFor(rel domain.RelTag) *relHistory {
	h, ok := r.rels.Get(rel)
	if !ok {
		h, _ = r.rels.GetOrSet(rel, &relHistory{})
	}
	return h
}

func (r *Repository) extendRel(tag domain.BufferTag, lsn domain.LSN) {
	h := r.relFor(tag.Rel)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sizes, _ = repository.ExtendSize(h.sizes, lsn, tag.BlkNum+1)
}

// AdvanceLastValidLSN implements repository.Repository.
func (r *Repository) AdvanceLastValidLSN(lsn domain.LSN) {
	r.lsn.Advance(lsn)
}

// LastValidLSN implements repository.Repository.
func (r *Repository) LastValidLSN() domain.LSN {
	return r.lsn.Load()
}

// WaitLSN implements repository.Repository.
func (r *Repository) WaitLSN(ctx context.Context, lsn domain.LSN) error {
	return r.lsn.Wait(ctx, lsn, r.waitTimeout)
}

// Stats reports the number of tracked pages and relations.
func (r *Repository) Stats() (pages, relations int) {
	return r.pages.Count(), r.rels.Count()
}

// Close drops all data and wakes LSN waiters.
func (r *Repository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.lsn.Close()
	pages, rels := r.Stats()
	r.pages.Clear()
	r.rels.Clear()
	r.logger.Info("in-memory repository closed", "pages", pages, "relations", rels)
	return nil
}
