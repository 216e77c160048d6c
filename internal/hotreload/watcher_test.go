package hotreload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "games.csv")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New(Config{DebounceTime: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	calls := make(chan Event, 8)
	if err := w.Watch(path, func(_ context.Context, ev Event) error {
		calls <- ev
		return nil
	}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// an unrelated file in the same directory must not trigger the handler
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case ev := <-calls:
		if filepath.Base(ev.Path) != "games.csv" {
			t.Fatalf("unexpected path %s", ev.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("handler not called")
	}
}

func TestWatchRejectsNilHandler(t *testing.T) {
	w, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch("x.csv", nil); err == nil {
		t.Fatalf("expected error for nil handler")
	}
}

func TestWatcherRunsHandlersOneAtATimeAndDrainsOnStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "games.csv")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New(Config{DebounceTime: 10 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	var running, overlaps atomic.Int32
	started := make(chan struct{}, 16)
	if err := w.Watch(path, func(context.Context, Event) error {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		started <- struct{}{}
		time.Sleep(100 * time.Millisecond)
		running.Add(-1)
		return nil
	}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler not called")
	}
	// second burst while the first run is still busy
	if err := os.WriteFile(path, []byte("v3"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return")
	}
	if n := running.Load(); n != 0 {
		t.Fatalf("run returned with %d handler(s) still running", n)
	}
	if n := overlaps.Load(); n != 0 {
		t.Fatalf("handlers overlapped %d time(s)", n)
	}
}
