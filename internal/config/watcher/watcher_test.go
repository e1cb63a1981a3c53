package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collector gathers emitted events.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestWatcher_UnchangedFileEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("a: 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New()
	c := &collector{}
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	w.Poll()
	w.Poll()

	if got := c.all(); len(got) != 0 {
		t.Errorf("events = %v, want none for unchanged mtime", got)
	}
}

func TestWatcher_WriteDetectedOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("a: 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New()
	c := &collector{}
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	// Push the mtime forward explicitly; writes within the same clock
	// tick would otherwise be invisible.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	w.Poll()
	w.Poll()

	got := c.all()
	if len(got) != 1 {
		t.Fatalf("events = %v, want exactly one", got)
	}
	if got[0].Op != OpWrite {
		t.Errorf("op = %v, want write", got[0].Op)
	}
}

func TestWatcher_CreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	w := New()
	c := &collector{}
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	// Missing file: no events yet.
	w.Poll()
	if got := c.all(); len(got) != 0 {
		t.Fatalf("events before creation = %v", got)
	}

	if err := os.WriteFile(path, []byte("a: 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Poll()

	got := c.all()
	if len(got) != 1 || got[0].Op != OpCreate {
		t.Fatalf("events after creation = %v, want one create", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.Poll()

	got = c.all()
	if len(got) != 2 || got[1].Op != OpRemove {
		t.Fatalf("events after removal = %v, want create then remove", got)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w := New(WithInterval(10 * time.Millisecond))

	w.Start()
	if !w.IsRunning() {
		t.Error("watcher should be running after Start")
	}
	w.Start() // second Start is a no-op

	w.Stop()
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop")
	}
	w.Stop() // second Stop is a no-op
}

func TestWatcher_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	w := New()
	w.OnChange(func(Event) { panic("boom") })
	c := &collector{}
	w.OnChange(c.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("a: 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Poll()

	if got := c.all(); len(got) != 1 {
		t.Errorf("events = %v, want one despite panicking sibling", got)
	}
}
