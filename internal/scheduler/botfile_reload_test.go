package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

type recordingApplier struct {
	mu    sync.Mutex
	calls [][]coursebot.Definition
	err   error
	done  chan struct{}
}

func (r *recordingApplier) Apply(_ context.Context, defs []coursebot.Definition) error {
	r.mu.Lock()
	r.calls = append(r.calls, defs)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.err
}

func (r *recordingApplier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func writeBots(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write bots file: %v", err)
	}
}

func TestBotFileReloader_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.yaml")
	writeBots(t, path, "bots:\n  - name: helper\n    channels: [\"#a\"]\n")

	applier := &recordingApplier{}
	br := NewBotFileReloader(path, applier, logger.New("error", false), 0, nil)
	ctx := context.Background()

	if err := br.Reload(ctx, false); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if applier.count() != 1 {
		t.Fatalf("Expected 1 apply, got %d", applier.count())
	}
	if got := applier.calls[0][0].Name; got != "helper" {
		t.Errorf("Expected bot helper, got %q", got)
	}
	if br.LastReload().IsZero() {
		t.Error("LastReload should be set after a successful reload")
	}

	// unchanged content is skipped unless forced
	if err := br.Reload(ctx, false); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if applier.count() != 1 {
		t.Errorf("Unchanged file should not be applied again, got %d applies", applier.count())
	}
	if err := br.Reload(ctx, true); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if applier.count() != 2 {
		t.Errorf("Forced reload should apply, got %d applies", applier.count())
	}

	writeBots(t, path, "bots:\n  - name: helper\n    channels: [\"#a\", \"#b\"]\n")
	if err := br.Reload(ctx, false); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if applier.count() != 3 {
		t.Errorf("Changed file should be applied, got %d applies", applier.count())
	}
}

func TestBotFileReloader_Errors(t *testing.T) {
	dir := t.TempDir()
	log := logger.New("error", false)
	ctx := context.Background()

	missing := NewBotFileReloader(filepath.Join(dir, "missing.yaml"), &recordingApplier{}, log, 0, nil)
	if err := missing.Reload(ctx, false); err == nil {
		t.Error("Reload of a missing file should fail")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	writeBots(t, invalid, "bots:\n  - channels: [\"#a\"]\n")
	if err := NewBotFileReloader(invalid, &recordingApplier{}, log, 0, nil).Reload(ctx, false); err == nil {
		t.Error("Reload of a bot without name should fail")
	}

	valid := filepath.Join(dir, "valid.yaml")
	writeBots(t, valid, "bots:\n  - name: helper\n")
	failing := &recordingApplier{err: errors.New("boom")}
	br := NewBotFileReloader(valid, failing, log, 0, nil)
	if err := br.Reload(ctx, false); err == nil {
		t.Error("Reload should report apply failures")
	}
	// a failed apply is retried on the next reload
	if err := br.Reload(ctx, false); err == nil {
		t.Error("Reload should report apply failures")
	}
	if failing.count() != 2 {
		t.Errorf("Expected 2 applies, got %d", failing.count())
	}
}

func TestBotFileReloader_ManualTrigger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.yaml")
	writeBots(t, path, "bots:\n  - name: helper\n")

	applier := &recordingApplier{done: make(chan struct{}, 4)}
	trigger := make(chan struct{})
	br := NewBotFileReloader(path, applier, logger.New("error", false), 0, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := br.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer br.Stop()
	<-applier.done

	trigger <- struct{}{}
	select {
	case <-applier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Manual trigger did not reload")
	}

	br.Stop()
	br.Stop()
}
