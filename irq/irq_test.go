package irq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLineRunsISR(t *testing.T) {
	l := NewLine("uart")
	n := 0
	l.SetISR(func() { n++ })

	l.Raise()
	l.Raise()
	require.Equal(t, 2, n)
	require.Equal(t, uint64(2), l.Serviced())
}

func TestDisabledLineLatchesPending(t *testing.T) {
	l := NewLine("timer")
	n := 0
	l.SetISR(func() { n++ })

	l.Disable()
	l.Raise()
	l.Raise()
	require.Equal(t, 0, n)

	// latched requests collapse into one service, like a level flag
	l.Enable()
	require.Equal(t, 1, n)

	l.Enable()
	require.Equal(t, 1, n)
}

func TestClearPendingDropsLatchedRequest(t *testing.T) {
	l := NewLine("timer")
	n := 0
	l.SetISR(func() { n++ })

	l.Disable()
	l.Raise()
	l.ClearPending()
	l.Enable()
	require.Equal(t, 0, n)

	l.Raise()
	require.Equal(t, 1, n)
}

func TestRaiseBeforeISRIsLatched(t *testing.T) {
	l := NewLine("uart")
	l.Raise()

	ran := false
	l.SetISR(func() { ran = true })
	require.True(t, ran)
}

func TestMaskHoldsOffISR(t *testing.T) {
	l := NewLine("uart")
	var mu sync.Mutex
	ran := false
	l.SetISR(func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	})

	g := Mask()
	done := make(chan struct{})
	go func() {
		l.Raise()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("isr ran while interrupts were masked")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	g.Release()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.True(t, ran)
}
