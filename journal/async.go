package journal

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rigado/hciuart"
)

// DefaultQueueSize is the number of measurements an Async journal holds
// before it starts dropping.
const DefaultQueueSize = 256

var ErrQueueFull = errors.New("journal queue full")

// Async hands measurements to a writer goroutine so Append never waits on
// the file. Load and Clear go straight to the backing journal.
type Async struct {
	j   hciuart.Journal
	q   chan hciuart.Measurement
	log hciuart.Logger

	dropped atomic.Uint64

	cmu    sync.Mutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the writer for j.
func NewAsync(j hciuart.Journal, size int, l hciuart.Logger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		j:    j,
		q:    make(chan hciuart.Measurement, size),
		log:  hciuart.ComponentLogger(l, "journal"),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for m := range a.q {
		if err := a.j.Append(m); err != nil {
			a.log.Errorf("append: %v", err)
		}
	}
}

// Append queues m. A full queue drops m and returns ErrQueueFull.
func (a *Async) Append(m hciuart.Measurement) error {
	a.cmu.Lock()
	defer a.cmu.Unlock()
	if a.closed {
		return errors.New("journal closed")
	}

	select {
	case a.q <- m:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

func (a *Async) Load() ([]hciuart.Measurement, error) {
	return a.j.Load()
}

func (a *Async) Clear() error {
	return a.j.Clear()
}

// Dropped counts measurements lost to a full queue.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close writes out what is queued and stops the writer.
func (a *Async) Close() error {
	a.cmu.Lock()
	if !a.closed {
		a.closed = true
		close(a.q)
	}
	a.cmu.Unlock()

	<-a.done
	return nil
}
