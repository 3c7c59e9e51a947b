package walredo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

// Manager replays WAL records onto a page image.
type Manager interface {
	// RequestRedo returns the page identified by tag as of lsn. base is
	// the newest image at or before the first record, or nil when the
	// first record initializes the page. records are in LSN order and
	// none is newer than lsn. The returned slice is newly allocated.
	RequestRedo(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, base []byte, records []domain.WALRecord) ([]byte, error)
}

// Config configures redo.
type Config struct {
	// Timeout bounds a single RequestRedo call. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Applier applies page-patch records in process.
type Applier struct {
	timeout time.Duration
	logger  *slog.Logger
	metrics *metric.Registry
}

// New creates an Applier. metrics may be nil.
func New(cfg Config, logger *slog.Logger, metrics *metric.Registry) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		timeout: cfg.Timeout,
		logger:  logger.With("component", "walredo"),
		metrics: metrics,
	}
}

// RequestRedo implements Manager.
func (a *Applier) RequestRedo(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, base []byte, records []domain.WALRecord) ([]byte, error) {
	start := time.Now()
	page, err := a.redo(ctx, tag, lsn, base, records)
	if a.metrics != nil {
		a.metrics.RedoRequests.WithLabelValues(metric.Result(err)).Inc()
		a.metrics.RedoDuration.Observe(time.Since(start).Seconds())
		a.metrics.RedoRecords.Observe(float64(len(records)))
	}
	if err != nil {
		a.logger.Warn("wal redo failed", "tag", tag.String(), "lsn", lsn.String(), "records", len(records), "error", err)
		return nil, err
	}
	a.logger.Debug("wal redo applied", "tag", tag.String(), "lsn", lsn.String(), "records", len(records))
	return page, nil
}

func (a *Applier) redo(ctx context.Context, tag domain.BufferTag, lsn domain.LSN, base []byte, records []domain.WALRecord) ([]byte, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var page []byte
	if base != nil {
		if len(base) != domain.PageSize {
			return nil, domain.ErrInvalidPageImage.WithDetailsf("base image for %s is %d bytes", tag, len(base))
		}
		page = make([]byte, domain.PageSize)
		copy(page, base)
	}

	var prev domain.LSN
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, domain.ErrRedoTimeout.WithDetailsf("page %s at %s", tag, lsn).WithCause(err)
			}
			return nil, err
		}
		if rec.LSN > lsn {
			return nil, domain.ErrInvalidArgument.WithDetailsf("record at %s is past requested lsn %s", rec.LSN, lsn)
		}
		if rec.LSN < prev {
			return nil, domain.ErrInvalidArgument.WithDetailsf("record at %s follows %s", rec.LSN, prev)
		}
		prev = rec.LSN

		if rec.WillInit {
			page = domain.ZeroPage()
		}
		if page == nil {
			return nil, domain.ErrNoBaseImage.WithDetailsf("page %s at %s", tag, lsn)
		}
		if int(rec.MainDataOffset) > len(rec.Rec) {
			return nil, domain.ErrMalformedRecord.WithDetailsf("record at %s: main data offset %d beyond %d-byte body", rec.LSN, rec.MainDataOffset, len(rec.Rec))
		}
		if err := applyPatches(page, rec.MainData()); err != nil {
			return nil, domain.ErrMalformedRecord.WithDetailsf("record at %s", rec.LSN).WithCause(err)
		}
	}

	if page == nil {
		return nil, domain.ErrNoBaseImage.WithDetailsf("page %s at %s", tag, lsn)
	}
	return page, nil
}
