package pageservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/infra/buildinfo"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/storage/objectstore"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

// Operation names used as metric labels.
const (
	OpGetPage      = "get_page"
	OpRelSize      = "rel_size"
	OpPutWALRecord = "put_wal_record"
	OpPutPageImage = "put_page_image"
	OpTruncate     = "truncate"
)

// Provider hands out the active repository. *registry.Registry
// implements it.
type Provider interface {
	Get() repository.Repository
}

// storeStatser is implemented by repositories backed by an object store.
type storeStatser interface {
	StoreStats(ctx context.Context) (objectstore.Stats, error)
}

// Service serves page requests against the active repository.
type Service struct {
	repos   Provider
	metrics *metric.Registry
	logger  *slog.Logger
}

// New creates a service. metrics may be nil.
func New(repos Provider, metrics *metric.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repos:   repos,
		metrics: metrics,
		logger:  logger.With("component", "pageservice"),
	}
}

// track starts timing op; the returned func records the outcome.
func (s *Service) track(op string) func(err *error) {
	start := time.Now()
	return func(err *error) {
		if s.metrics == nil {
			return
		}
		s.metrics.PageOps.WithLabelValues(op, metric.Result(*err)).Inc()
		s.metrics.PageOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// GetPage returns the page image of tag as of lsn.
func (s *Service) GetPage(ctx context.Context, tag domain.BufferTag, lsn domain.LSN) (page []byte, err error) {
	defer s.track(OpGetPage)(&err)
	page, err = s.repos.Get().GetPageAtLSN(ctx, tag, lsn)
	if err != nil {
		s.logger.Debug("get page failed", "tag", tag.String(), "lsn", lsn.String(), "error", err)
	}
	return page, err
}

// RelSize returns the size of rel in blocks as of lsn.
func (s *Service) RelSize(ctx context.Context, rel domain.RelTag, lsn domain.LSN) (n uint32, err error) {
	defer s.track(OpRelSize)(&err)
	return s.repos.Get().GetRelSize(ctx, rel, lsn)
}

// PutWALRecord ingests a WAL record for tag.
func (s *Service) PutWALRecord(ctx context.Context, tag domain.BufferTag, rec domain.WALRecord) (err error) {
	defer s.track(OpPutWALRecord)(&err)
	return s.repos.Get().PutWALRecord(ctx, tag, rec)
}

// PutPageImage ingests a full page image for tag at lsn.
func (s *Service) PutPageImage(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, img []byte) (err error) {
	defer s.track(OpPutPageImage)(&err)
	return s.repos.Get().PutPageImage(ctx, tag, lsn, img)
}

// Truncate sets the size of rel at lsn.
func (s *Service) Truncate(ctx context.Context, rel domain.RelTag, lsn domain.LSN, nblocks uint32) (err error) {
	defer s.track(OpTruncate)(&err)
	return s.repos.Get().PutTruncation(ctx, rel, lsn, nblocks)
}

// AdvanceLastValidLSN marks WAL up to lsn as ingested.
func (s *Service) AdvanceLastValidLSN(lsn domain.LSN) {
	s.repos.Get().AdvanceLastValidLSN(lsn)
}

// Status describes the running server.
type Status struct {
	Kind         string             `json:"kind" yaml:"kind"`
	ID           string             `json:"id" yaml:"id"`
	LastValidLSN string             `json:"last_valid_lsn" yaml:"last_valid_lsn"`
	Store        *objectstore.Stats `json:"store,omitempty" yaml:"store,omitempty"`
	Build        buildinfo.Info     `json:"build" yaml:"build"`
}

// Status reports the active repository and build.
func (s *Service) Status(ctx context.Context) (Status, error) {
	repo := s.repos.Get()
	st := Status{
		Kind:         repo.Kind().String(),
		ID:           repo.ID(),
		LastValidLSN: repo.LastValidLSN().String(),
		Build:        buildinfo.Get(),
	}
	if ss, ok := repo.(storeStatser); ok {
		stats, err := ss.StoreStats(ctx)
		if err != nil {
			return Status{}, fmt.Errorf("object store stats: %w", err)
		}
		st.Store = &stats
	}
	return st, nil
}
