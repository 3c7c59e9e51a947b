package objectrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/storage/objectstore"
	"github.com/yndnr/pageserver-go/internal/walredo"
)

// Config configures the object-store-backed repository.
type Config struct {
	// WaitLSNTimeout bounds how long reads wait for WAL.
	WaitLSNTimeout time.Duration
}

// Repository is the persistent repository.
type Repository struct {
	id          string
	store       objectstore.Store
	redo        walredo.Manager
	codec       *codec
	waitTimeout time.Duration
	logger      *slog.Logger

	lsn *repository.LSNTracker

	// relMu serializes relation size read-modify-write.
	relMu sync.Mutex
	// persistMu orders writes of the last valid LSN.
	persistMu sync.Mutex

	closed atomic.Bool
}

var _ repository.Repository = (*Repository)(nil)

// New opens a repository on store, restoring the last valid LSN persisted
// by a previous instance. On success the repository owns store.
func New(ctx context.Context, cfg Config, store objectstore.Store, redo walredo.Manager, logger *slog.Logger) (*Repository, error) {
	if store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("object store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	last := domain.InvalidLSN
	b, err := store.Get(ctx, lastValidLSNKey)
	switch {
	case err == nil:
		if last, err = decodeLSN(b); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrKeyNotFound):
	default:
		return nil, fmt.Errorf("load last valid lsn: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		return nil, err
	}

	id := repository.NewID()
	r := &Repository{
		id:          id,
		store:       store,
		redo:        redo,
		codec:       c,
		waitTimeout: cfg.WaitLSNTimeout,
		logger:      logger.With("repository", id, "kind", repository.KindObjectStore.String()),
		lsn:         repository.NewLSNTracker(last),
	}
	r.logger.Info("object store repository opened", "last_valid_lsn", last.String())
	return r, nil
}

// Kind implements repository.Repository.
func (r *Repository) Kind() repository.Kind { return repository.KindObjectStore }

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

	versions, err := r.versions(ctx, tag, lsn)
	if err != nil {
		return nil, err
	}

	page, materialize, err := repository.Reconstruct(ctx, r.redo, tag, lsn, versions)
	if err != nil {
		return nil, err
	}
	if materialize {
		if err := r.store.Put(ctx, pageKey(tag, lsn, kindImage), r.codec.encodeImage(page)); err != nil {
			r.logger.Warn("failed to store materialized page", "tag", tag.String(), "lsn", lsn.String(), "error", err)
		}
	}
	return page, nil
}

// versions returns the history of tag up to and including lsn.
func (r *Repository) versions(ctx context.Context, tag domain.BufferTag, lsn domain.LSN) ([]repository.Version, error) {
	var (
		versions []repository.Version
		decErr   error
	)
	err := r.store.Scan(ctx, pagePrefix(tag), func(key, value []byte) bool {
		vlsn, kind, err := parsePageKey(key)
		if err != nil {
			decErr = err
			return false
		}
		if vlsn > lsn {
			return false
		}
		v, err := r.codec.decodeVersion(vlsn, kind, value)
		if err != nil {
			decErr = err
			return false
		}
		versions = append(versions, v)
		return true
	})
	if err != nil {
		return nil, r.storeErr(err)
	}
	if decErr != nil {
		return nil, decErr
	}
	return versions, nil
}

// GetRelSize implements repository.Repository.
func (r *Repository) GetRelSize(ctx context.Context, rel domain.RelTag, lsn domain.LSN) (uint32, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	if err := r.WaitLSN(ctx, lsn); err != nil {
		return 0, err
	}

	n, ok, err := r.sizeAt(ctx, rel, lsn)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrRelationNotFound.WithDetailsf("%s at %s", rel, lsn)
	}
	return n, nil
}

// sizeAt returns the newest relation size at or below lsn.
func (r *Repository) sizeAt(ctx context.Context, rel domain.RelTag, lsn domain.LSN) (uint32, bool, error) {
	var (
		nblocks uint32
		found   bool
		decErr  error
	)
	err := r.store.Scan(ctx, relPrefix(rel), func(key, value []byte) bool {
		slsn, err := parseRelKey(key)
		if err != nil {
			decErr = err
			return false
		}
		if slsn > lsn {
			return false
		}
		n, _, err := decodeSize(value)
		if err != nil {
			decErr = domain.ErrCorruptVersion.WithDetailsf("%s size at %s", rel, slsn).WithCause(err)
			return false
		}
		nblocks, found = n, true
		return true
	})
	if err != nil {
		return 0, false, r.storeErr(err)
	}
	if decErr != nil {
		return 0, false, decErr
	}
	return nblocks, found, nil
}

// PutWALRecord implements repository.Repository.
func (r *Repository) PutWALRecord(ctx context.Context, tag domain.BufferTag, rec domain.WALRecord) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := r.store.Put(ctx, pageKey(tag, rec.LSN, kindRecord), r.codec.encodeRecord(rec)); err != nil {
		return r.storeErr(err)
	}
	return r.extendRel(ctx, tag, rec.LSN)
}

// PutPageImage implements repository.Repository.
func (r *Repository) PutPageImage(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, img []byte) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := repository.ValidateImage(tag, img); err != nil {
		return err
	}
	if err := r.store.Put(ctx, pageKey(tag, lsn, kindImage), r.codec.encodeImage(img)); err != nil {
		return r.storeErr(err)
	}
	return r.extendRel(ctx, tag, lsn)
}

// PutTruncation implements repository.Repository.
func (r *Repository) PutTruncation(ctx context.Context, rel domain.RelTag, lsn domain.LSN, nblocks uint32) error {
	if err := r.check(); err != nil {
		return err
	}
	r.relMu.Lock()
	defer r.relMu.Unlock()
	return r.storeErr(r.store.Put(ctx, relKey(rel, lsn), encodeSize(repository.SizeEntry{LSN: lsn, NBlocks: nblocks, Truncated: true})))
}

func (r *Repository) extendRel(ctx context.Context, tag domain.BufferTag, lsn domain.LSN) error {
	r.relMu.Lock()
	defer r.relMu.Unlock()
	history, err := r.sizeHistory(ctx, tag.Rel)
	if err != nil {
		return err
	}
	_, changed := repository.ExtendSize(history, lsn, tag.BlkNum+1)
	for _, e := range changed {
		if err := r.store.Put(ctx, relKey(tag.Rel, e.LSN), encodeSize(e)); err != nil {
			return r.storeErr(err)
		}
	}
	return nil
}

// sizeHistory loads every size entry of rel in LSN order.
func (r *Repository) sizeHistory(ctx context.Context, rel domain.RelTag) ([]repository.SizeEntry, error) {
	var (
		history []repository.SizeEntry
		decErr  error
	)
	err := r.store.Scan(ctx, relPrefix(rel), func(key, value []byte) bool {
		lsn, err := parseRelKey(key)
		if err != nil {
			decErr = err
			return false
		}
		n, truncated, err := decodeSize(value)
		if err != nil {
			decErr = domain.ErrCorruptVersion.WithDetailsf("%s size at %s", rel, lsn).WithCause(err)
			return false
		}
		history = append(history, repository.SizeEntry{LSN: lsn, NBlocks: n, Truncated: truncated})
		return true
	})
	if err != nil {
		return nil, r.storeErr(err)
	}
	if decErr != nil {
		return nil, decErr
	}
	return history, nil
}

// AdvanceLastValidLSN implements repository.Repository. The new value is
// persisted; a failed write is logged and retried by the next advance.
func (r *Repository) AdvanceLastValidLSN(lsn domain.LSN) {
	if !r.lsn.Advance(lsn) {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	cur := r.lsn.Load()
	if err := r.store.Put(context.Background(), lastValidLSNKey, encodeLSN(cur)); err != nil {
		r.logger.Error("failed to persist last valid lsn", "lsn", cur.String(), "error", err)
	}
}

// LastValidLSN implements repository.Repository.
func (r *Repository) LastValidLSN() domain.LSN {
	return r.lsn.Load()
}

// WaitLSN implements repository.Repository.
func (r *Repository) WaitLSN(ctx context.Context, lsn domain.LSN) error {
	return r.lsn.Wait(ctx, lsn, r.waitTimeout)
}

// StoreStats returns statistics of the underlying object store.
func (r *Repository) StoreStats(ctx context.Context) (objectstore.Stats, error) {
	if err := r.check(); err != nil {
		return objectstore.Stats{}, err
	}
	return r.store.Stats(ctx)
}

// Close wakes LSN waiters and closes the object store.
func (r *Repository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.lsn.Close()

	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	err := r.store.Close()
	r.codec.close()
	if err != nil {
		r.logger.Error("failed to close object store", "error", err)
		return err
	}
	r.logger.Info("object store repository closed", "last_valid_lsn", r.lsn.Load().String())
	return nil
}

// storeErr maps a closed store to a closed repository.
func (r *Repository) storeErr(err error) error {
	if err != nil && errors.Is(err, domain.ErrStoreClosed) {
		return domain.ErrRepositoryClosed.WithCause(err)
	}
	return err
}
