package objectstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

func openTestBadger(t *testing.T, reg prometheus.Registerer) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(BadgerConfig{
		Dir:     t.TempDir(),
		GCRatio: 0.5,
	}, quietLogger(), reg)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	return s
}

func TestBadgerStore_Contract(t *testing.T) {
	testStoreContract(t, openTestBadger(t, nil))
}

func TestBadgerStore_EmptyDir(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{}, quietLogger(), nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("OpenBadger() error = %v, want ErrInvalidArgument", err)
	}
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(BadgerConfig{Dir: dir, GCRatio: 0.5}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	if err := s.Put(ctx, []byte("durable"), []byte("yes")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = OpenBadger(BadgerConfig{Dir: dir, GCRatio: 0.5}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, []byte("durable"))
	if err != nil || string(got) != "yes" {
		t.Errorf("Get() after reopen = %q, %v", got, err)
	}
}

func TestBadgerStore_DirectoryLocked(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadger(BadgerConfig{Dir: dir, GCRatio: 0.5}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	defer s.Close()

	if second, err := OpenBadger(BadgerConfig{Dir: dir, GCRatio: 0.5}, quietLogger(), nil); err == nil {
		second.Close()
		t.Error("second OpenBadger() on a locked dir should fail")
	}
}

func TestBadgerStore_Encrypted(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{
		Dir:            t.TempDir(),
		GCRatio:        0.5,
		EncryptionKey:  []byte("0123456789abcdef"),
		IndexCacheSize: 1 << 20,
	}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, []byte("k"), []byte("secret")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, []byte("k"))
	if err != nil || string(got) != "secret" {
		t.Errorf("Get() = %q, %v", got, err)
	}
}

func TestBadgerStore_GC(t *testing.T) {
	s := openTestBadger(t, nil)
	defer s.Close()

	if _, err := s.GC(); err != nil {
		t.Errorf("GC() error = %v", err)
	}
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.LastGCTime == 0 {
		t.Error("LastGCTime should be set after GC")
	}
}

func TestBadgerStore_GCLoop(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{
		Dir:        t.TempDir(),
		GCRatio:    0.5,
		GCInterval: 20 * time.Millisecond,
	}, quietLogger(), nil)
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.lastGCTime.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background GC did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBadgerStore_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := openTestBadger(t, reg)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range mfs {
		if strings.HasPrefix(mf.GetName(), "pageserver_badger_") {
			found = true
		}
	}
	if !found {
		t.Error("badger metrics not registered")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	mfs, _ = reg.Gather()
	if len(mfs) != 0 {
		t.Errorf("%d metric families remain after Close, want 0", len(mfs))
	}
}
