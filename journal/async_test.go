package journal

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rigado/hciuart"
)

// gateJournal blocks every Append until release is closed.
type gateJournal struct {
	release chan struct{}
	mu      sync.Mutex
	got     []hciuart.Measurement
}

func (g *gateJournal) Append(m hciuart.Measurement) error {
	<-g.release
	g.mu.Lock()
	g.got = append(g.got, m)
	g.mu.Unlock()
	return nil
}

func (g *gateJournal) Load() ([]hciuart.Measurement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]hciuart.Measurement(nil), g.got...), nil
}

func (g *gateJournal) Clear() error { return nil }

func TestAsync_AppendDoesNotWaitForWriter(t *testing.T) {
	g := &gateJournal{release: make(chan struct{})}
	a := NewAsync(g, 2, hciuart.NewDiscardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			if err := a.Append(hciuart.Measurement{Tag: uint8(i)}); err != nil {
				t.Errorf("append %d: %s", i, err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("append blocked on a stalled journal")
	}

	close(g.release)
	a.Close()

	loaded, _ := g.Load()
	if len(loaded) != 2 {
		t.Fatalf("expected 2 measurements after close but got %d", len(loaded))
	}
}

func TestAsync_FullQueueDrops(t *testing.T) {
	g := &gateJournal{release: make(chan struct{})}
	a := NewAsync(g, 1, hciuart.NewDiscardLogger())

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = a.Append(hciuart.Measurement{Tag: uint8(i)})
	}
	if err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull but got %v", err)
	}
	if a.Dropped() != 1 {
		t.Fatalf("expected 1 dropped but got %d", a.Dropped())
	}

	close(g.release)
	a.Close()
	if err := a.Append(hciuart.Measurement{}); err == nil {
		t.Fatal("expected error appending to a closed journal")
	}
}

func TestAsync_WritesFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "async.journal")
	a := NewAsync(New(fn, 0), 0, hciuart.NewDiscardLogger())

	for i := 0; i < 5; i++ {
		if err := a.Append(hciuart.Measurement{Kind: "T", Tag: uint8(i)}); err != nil {
			t.Fatalf("append: %s", err)
		}
	}
	a.Close()

	loaded, err := New(fn, 0).Load()
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if len(loaded) != 5 || loaded[4].Tag != 4 {
		t.Fatalf("unexpected journal contents: %+v", loaded)
	}
}
