package pageservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/yndnr/pageserver-go/internal/core/domain"
	"github.com/yndnr/pageserver-go/internal/repository"
	"github.com/yndnr/pageserver-go/internal/repository/inmemory"
	"github.com/yndnr/pageserver-go/internal/repository/objectrepo"
	"github.com/yndnr/pageserver-go/internal/storage/objectstore"
	"github.com/yndnr/pageserver-go/internal/telemetry/metric"
	"github.com/yndnr/pageserver-go/internal/walredo"
)

var (
	rel = domain.RelTag{SpcNode: 1663, DBNode: 5, RelNode: 1259}
	tag = domain.BufferTag{Rel: rel, BlkNum: 0}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticProvider always returns the same repository and counts calls.
type staticProvider struct {
	repo  repository.Repository
	calls int
}

func (p *staticProvider) Get() repository.Repository {
	p.calls++
	return p.repo
}

func newInMemory(t *testing.T) repository.Repository {
	t.Helper()
	r := inmemory.New(inmemory.Config{}, walredo.New(walredo.Config{}, nil, nil), quietLogger())
	t.Cleanup(func() { r.Close() })
	return r
}

func counter(t *testing.T, m *metric.Registry, op, result string) float64 {
	t.Helper()
	var d dto.Metric
	if err := m.PageOps.WithLabelValues(op, result).Write(&d); err != nil {
		t.Fatal(err)
	}
	return d.GetCounter().GetValue()
}

func TestService_Operations(t *testing.T) {
	ctx := context.Background()
	p := &staticProvider{repo: newInMemory(t)}
	m := metric.NewRegistry()
	s := New(p, m, quietLogger())

	img := domain.ZeroPage()
	copy(img, "image")
	if err := s.PutPageImage(ctx, tag, 0x10, img); err != nil {
		t.Fatalf("PutPageImage() error = %v", err)
	}
	rec := walredo.NewRecord(0x20, false, nil, walredo.Patch{Offset: 0, Data: []byte("IMAGE")})
	if err := s.PutWALRecord(ctx, tag, rec); err != nil {
		t.Fatalf("PutWALRecord() error = %v", err)
	}
	if err := s.Truncate(ctx, rel, 0x30, 0); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}
	s.AdvanceLastValidLSN(0x30)

	page, err := s.GetPage(ctx, tag, 0x20)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if string(page[:5]) != "IMAGE" {
		t.Errorf("GetPage() = %q, want IMAGE prefix", page[:5])
	}

	if n, err := s.RelSize(ctx, rel, 0x20); err != nil || n != 1 {
		t.Errorf("RelSize(0x20) = %d, %v, want 1", n, err)
	}
	if n, err := s.RelSize(ctx, rel, 0x30); err != nil || n != 0 {
		t.Errorf("RelSize(0x30) = %d, %v, want 0", n, err)
	}

	if p.calls != 7 {
		t.Errorf("provider calls = %d, want one per operation (7)", p.calls)
	}
	if got := counter(t, m, OpGetPage, "ok"); got != 1 {
		t.Errorf("get_page ok = %v, want 1", got)
	}
	if got := counter(t, m, OpRelSize, "ok"); got != 2 {
		t.Errorf("rel_size ok = %v, want 2", got)
	}
}

func TestService_ErrorsCounted(t *testing.T) {
	ctx := context.Background()
	m := metric.NewRegistry()
	s := New(&staticProvider{repo: newInMemory(t)}, m, quietLogger())

	if err := s.PutPageImage(ctx, tag, 1, []byte("short")); !errors.Is(err, domain.ErrInvalidPageImage) {
		t.Errorf("PutPageImage() error = %v, want ErrInvalidPageImage", err)
	}
	if _, err := s.RelSize(ctx, domain.RelTag{RelNode: 99}, 0); !errors.Is(err, domain.ErrRelationNotFound) {
		t.Errorf("RelSize() error = %v, want ErrRelationNotFound", err)
	}

	if got := counter(t, m, OpPutPageImage, "error"); got != 1 {
		t.Errorf("put_page_image error = %v, want 1", got)
	}
	if got := counter(t, m, OpRelSize, "error"); got != 1 {
		t.Errorf("rel_size error = %v, want 1", got)
	}
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("inmemory", func(t *testing.T) {
		repo := newInMemory(t)
		repo.AdvanceLastValidLSN(0x1_0000_0010)
		st, err := New(&staticProvider{repo: repo}, nil, nil).Status(ctx)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Kind != "inmemory" || st.ID != repo.ID() {
			t.Errorf("Status() = %+v", st)
		}
		if st.LastValidLSN != "1/10" {
			t.Errorf("LastValidLSN = %q, want 1/10", st.LastValidLSN)
		}
		if st.Store != nil {
			t.Error("Store stats reported for in-memory repository")
		}
	})

	t.Run("objectstore", func(t *testing.T) {
		store, err := objectstore.OpenBadger(objectstore.BadgerConfig{Dir: t.TempDir()}, quietLogger(), nil)
		if err != nil {
			t.Fatalf("OpenBadger() error = %v", err)
		}
		repo, err := objectrepo.New(ctx, objectrepo.Config{}, store, walredo.New(walredo.Config{}, nil, nil), quietLogger())
		if err != nil {
			t.Fatalf("objectrepo.New() error = %v", err)
		}
		defer repo.Close()

		s := New(&staticProvider{repo: repo}, nil, nil)
		st, err := s.Status(ctx)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Store == nil || st.Store.Driver != objectstore.DriverBadger {
			t.Fatalf("Store = %+v, want badger stats", st.Store)
		}

		b, err := json.Marshal(st)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(b, &decoded); err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"kind", "id", "last_valid_lsn", "store", "build"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("status JSON missing %q: %s", key, b)
			}
		}

		repo.Close()
		if _, err := s.Status(ctx); !errors.Is(err, domain.ErrRepositoryClosed) {
			t.Errorf("Status() after Close error = %v, want ErrRepositoryClosed", err)
		}
	})
}
