package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

// BadgerStore implements Store on Badger v3.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	lastGCTime atomic.Int64
	gcRuns     atomic.Uint64
	gets       atomic.Uint64
	puts       atomic.Uint64
	deletes    atomic.Uint64

	reg        prometheus.Registerer
	collectors []prometheus.Collector

	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenBadger opens (creating if needed) a Badger database in cfg.Dir.
func OpenBadger(cfg BadgerConfig, logger *slog.Logger, reg prometheus.Registerer) (*BadgerStore, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.BlockCacheSize > 0 {
		opts.BlockCacheSize = cfg.BlockCacheSize
	}
	if cfg.IndexCacheSize > 0 {
		opts.IndexCacheSize = cfg.IndexCacheSize
	}
	if len(cfg.EncryptionKey) > 0 {
		opts.EncryptionKey = cfg.EncryptionKey
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", cfg.Dir, err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if reg != nil {
		if err := s.registerMetrics(reg); err != nil {
			logger.Warn("badger metrics not registered", "error", err)
		}
	}

	go s.gcLoop()

	logger.Info("badger object store opened",
		"dir", cfg.Dir,
		"sync_writes", cfg.SyncWrites,
		"encrypted", len(cfg.EncryptionKey) > 0,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

func (s *BadgerStore) acquire() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.ErrStoreClosed
	}
	return nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	s.gets.Add(1)

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, key, value []byte) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.RUnlock()
	s.puts.Add(1)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, key []byte) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.RUnlock()
	s.deletes.Add(1)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan implements Store.
func (s *BadgerStore) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.Key(), value) {
				break
			}
		}
		return nil
	})
}

// GC runs value log GC until Badger finds nothing more to rewrite.
// It returns the number of rewrites performed.
func (s *BadgerStore) GC() (int, error) {
	if err := s.acquire(); err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()

	start := time.Now()
	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("badger gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(uint64(runs))
	s.logger.Debug("badger gc completed", "rewrites", runs, "elapsed", time.Since(start))
	return runs, nil
}

// Stats implements Store.
func (s *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	if err := s.acquire(); err != nil {
		return Stats{}, err
	}
	defer s.mu.RUnlock()

	lsm, vlog := s.db.Size()
	return Stats{
		Driver:       DriverBadger,
		TotalSize:    uint64(lsm + vlog),
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   s.lastGCTime.Load(),
		GCRuns:       s.gcRuns.Load(),
		Gets:         s.gets.Load(),
		Puts:         s.puts.Load(),
		Deletes:      s.deletes.Load(),
	}, nil
}

// Close stops background GC, unregisters metrics and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	for _, c := range s.collectors {
		s.reg.Unregister(c)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badger: close: %w", err)
	}
	s.logger.Info("badger object store closed", "dir", s.cfg.Dir)
	return nil
}

func (s *BadgerStore) registerMetrics(reg prometheus.Registerer) error {
	labels := prometheus.Labels{"dir": s.cfg.Dir}
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			lsm, vlog := s.db.Size()
			return float64(pick(lsm, vlog))
		}
	}

	s.collectors = []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "badger",
			Name:        "lsm_size_bytes",
			Help:        "Badger LSM tree size in bytes",
			ConstLabels: labels,
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "badger",
			Name:        "value_log_size_bytes",
			Help:        "Badger value log size in bytes",
			ConstLabels: labels,
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "badger",
			Name:        "last_gc_timestamp_seconds",
			Help:        "Unix timestamp of the last Badger value log GC",
			ConstLabels: labels,
		}, func() float64 { return float64(s.lastGCTime.Load()) / 1000 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "badger",
			Name:        "gc_rewrites_total",
			Help:        "Value log files rewritten by Badger GC",
			ConstLabels: labels,
		}, func() float64 { return float64(s.gcRuns.Load()) }),
	}

	for i, c := range s.collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range s.collectors[:i] {
				reg.Unregister(done)
			}
			s.collectors = nil
			return err
		}
	}
	s.reg = reg
	return nil
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)
	if s.cfg.GCInterval <= 0 {
		<-s.stopCh
		return
	}

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.GC(); err != nil && !errors.Is(err, domain.ErrStoreClosed) {
				s.logger.Error("badger auto gc failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
