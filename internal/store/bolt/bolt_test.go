package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestReadWriteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "coursebots.bolt")

	s, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, err := s.Read(ctx, []byte("missing"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != nil {
		t.Errorf("Read() of missing key = %q, want nil", got)
	}

	if err := s.Write(ctx, []byte("meta|lastBotId|"), []byte("3")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path, time.Second)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err = s.Read(ctx, []byte("meta|lastBotId|"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "3" {
		t.Errorf("Read() after reopen = %q, want %q", got, "3")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestCanceledContext(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "c.bolt"), 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Write(ctx, []byte("k"), []byte("v")); err == nil {
		t.Error("Write() with canceled context should fail")
	}
}

func TestPing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "p.bolt"), 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close should fail")
	}
}
