package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/server/config"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inMemoryConfig() *config.ServerConfig {
	cfg := config.Default()
	cfg.Repository.Format = "inmemory"
	return cfg
}

func badgerConfig(dir string) *config.ServerConfig {
	cfg := config.Default()
	cfg.Repository.Format = "objectstore"
	cfg.ObjectStore.Driver = "badger"
	cfg.ObjectStore.Badger.Dir = dir
	cfg.ObjectStore.Badger.GCInterval = 0
	return cfg
}

// mustPanic runs fn and returns the recovered value.
func mustPanic(t *testing.T, fn func()) (v any) {
	t.Helper()
	defer func() {
		v = recover()
		if v == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
	return nil
}

func TestRegistry_InitGet(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.ServerConfig
		kind repository.Kind
	}{
		{"inmemory", func(*testing.T) *config.ServerConfig { return inMemoryConfig() }, repository.KindInMemory},
		{"objectstore", func(t *testing.T) *config.ServerConfig { return badgerConfig(t.TempDir()) }, repository.KindObjectStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(WithLogger(quietLogger()))
			defer r.Close()

			if err := r.Init(context.Background(), tt.cfg(t)); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if !r.Initialized() {
				t.Error("Initialized() = false after Init")
			}
			repo := r.Get()
			if repo.Kind() != tt.kind {
				t.Errorf("Get().Kind() = %v, want %v", repo.Kind(), tt.kind)
			}
			if again := r.Get(); again != repo {
				t.Errorf("second Get() = %s, want %s", again.ID(), repo.ID())
			}
		})
	}
}

func TestRegistry_GetBeforeInit(t *testing.T) {
	r := New(WithLogger(quietLogger()))

	if r.Initialized() {
		t.Error("Initialized() = true before Init")
	}
	v := mustPanic(t, func() { r.Get() })
	if err, ok := v.(error); !ok || !errors.Is(err, ErrNotInitialized) {
		t.Errorf("panic value = %v, want ErrNotInitialized", v)
	}
	if _, ok := r.State(); ok {
		t.Error("State() ok before Init")
	}
}

func TestRegistry_InitUnopenableStore(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := New(WithLogger(quietLogger()))
	err := r.Init(context.Background(), badgerConfig(file))
	if !errors.Is(err, ErrObjectStoreOpen) {
		t.Fatalf("Init() error = %v, want ErrObjectStoreOpen", err)
	}
	if r.Initialized() {
		t.Error("Initialized() = true after failed Init")
	}
	mustPanic(t, func() { r.Get() })
}

func TestRegistry_InitErrors(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	defer r.Close()
	ctx := context.Background()

	if err := r.Init(ctx, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Init(nil) error = %v, want ErrInvalidArgument", err)
	}

	cfg := inMemoryConfig()
	cfg.Repository.Format = "rocksdb"
	if err := r.Init(ctx, cfg); !errors.Is(err, repository.ErrUnknownKind) {
		t.Errorf("Init(rocksdb) error = %v, want ErrUnknownKind", err)
	}

	if err := r.Init(ctx, inMemoryConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	before := r.Get()

	bad := badgerConfig(t.TempDir())
	bad.ObjectStore.Driver = "floppy"
	if err := r.Init(ctx, bad); !errors.Is(err, ErrObjectStoreOpen) {
		t.Errorf("Init(unknown driver) error = %v, want ErrObjectStoreOpen", err)
	}
	if r.Get() != before {
		t.Error("failed Init replaced the active backend")
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	defer r.Close()
	if err := r.Init(context.Background(), inMemoryConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	want := r.Get()

	const n = 64
	got := make([]repository.Repository, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get()
		}(i)
	}
	wg.Wait()

	for i, repo := range got {
		if repo != want {
			t.Errorf("goroutine %d got %s, want %s", i, repo.ID(), want.ID())
		}
	}
}

func TestRegistry_Reinit(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	ctx := context.Background()

	if err := r.Init(ctx, inMemoryConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	first := r.Get()

	if err := r.Init(ctx, badgerConfig(t.TempDir())); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	second := r.Get()

	if second == first || second.ID() == first.ID() {
		t.Fatal("second Init did not replace the backend")
	}
	if second.Kind() != repository.KindObjectStore {
		t.Errorf("Kind() = %v, want objectstore", second.Kind())
	}

	// The replaced backend keeps serving until Close.
	if _, err := first.GetPageAtLSN(ctx, domain.BufferTag{}, 0); err != nil {
		t.Errorf("retired backend GetPageAtLSN() error = %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := first.GetPageAtLSN(ctx, domain.BufferTag{}, 0); !errors.Is(err, domain.ErrRepositoryClosed) {
		t.Errorf("retired backend after Close error = %v, want ErrRepositoryClosed", err)
	}
	if _, err := second.GetPageAtLSN(ctx, domain.BufferTag{}, 0); !errors.Is(err, domain.ErrRepositoryClosed) {
		t.Errorf("active backend after Close error = %v, want ErrRepositoryClosed", err)
	}
	mustPanic(t, func() { r.Get() })
}

func TestRegistry_Metrics(t *testing.T) {
	m := metric.NewRegistry()
	r := New(WithLogger(quietLogger()), WithMetrics(m))
	defer r.Close()
	ctx := context.Background()

	bad := inMemoryConfig()
	bad.Repository.Format = "bogus"
	_ = r.Init(ctx, bad)
	if err := r.Init(ctx, inMemoryConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	r.Get()
	r.Get()

	var c dto.Metric
	if err := m.RepositoryInits.WithLabelValues("inmemory", "ok").Write(&c); err != nil {
		t.Fatal(err)
	}
	if c.GetCounter().GetValue() != 1 {
		t.Errorf("inits{inmemory,ok} = %v, want 1", c.GetCounter().GetValue())
	}
	if err := m.RepositoryInits.WithLabelValues("bogus", "error").Write(&c); err != nil {
		t.Fatal(err)
	}
	if c.GetCounter().GetValue() != 1 {
		t.Errorf("inits{bogus,error} = %v, want 1", c.GetCounter().GetValue())
	}
	if err := m.RepositoryGets.Write(&c); err != nil {
		t.Fatal(err)
	}
	if c.GetCounter().GetValue() != 2 {
		t.Errorf("gets = %v, want 2", c.GetCounter().GetValue())
	}

	state, ok := r.State()
	if !ok || state.Kind != "inmemory" || state.ID != r.Get().ID() {
		t.Errorf("State() = %+v, %v", state, ok)
	}
}
