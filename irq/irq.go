// Package irq delivers edge-triggered data-ready signals from a GPIO input
// to a handler.
//
// A Line invokes its handler from a watcher goroutine, which plays the role
// of interrupt context for the rest of the firmware: handlers must return
// quickly and must not call back into the Line.
package irq

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
)

// DefaultPin is the data-ready input used when nothing else is configured.
const DefaultPin = 6

// DefaultPollInterval bounds how long a watcher takes to notice Disarm.
const DefaultPollInterval = 50 * time.Millisecond

// Edge selects which transitions fire the handler.
type Edge int

const (
	RisingEdge Edge = iota
	FallingEdge
	BothEdges
)

func (e Edge) String() string {
	switch e {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	case BothEdges:
		return "both"
	default:
		return "unknown"
	}
}

// Line is one interrupt input.
type Line interface {
	// Arm starts delivering edges to handler. Arming an armed line
	// replaces the handler.
	Arm(edge Edge, handler func()) error

	// Disarm stops delivery. The handler is not invoked after Disarm
	// returns. Disarming a disarmed line is a no-op.
	Disarm() error

	String() string
}

// Paced is implemented by lines that poll the pin and have to know how
// often edges arrive to catch each of them.
type Paced interface {
	SetEdgeRate(f physic.Frequency)
}

// watcher runs the goroutine shared by the hardware lines. wait blocks for at
// most one poll interval and reports whether an edge arrived.
type watcher struct {
	mu      sync.Mutex
	handler func()
	stop    chan struct{}
	done    chan struct{}
}

func (w *watcher) running() bool {
	return w.stop != nil
}

// start launches the goroutine, or only swaps the handler if it already runs.
func (w *watcher) start(handler func(), wait func() bool) {
	w.mu.Lock()
	w.handler = handler
	w.mu.Unlock()
	if w.running() {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(w.stop, w.done, wait)
}

func (w *watcher) loop(stop, done chan struct{}, wait func() bool) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !wait() {
			continue
		}
		w.mu.Lock()
		select {
		case <-stop:
			w.mu.Unlock()
			return
		default:
		}
		if w.handler != nil {
			w.handler()
		}
		w.mu.Unlock()
	}
}

// halt stops the goroutine and waits for it to exit.
func (w *watcher) halt() {
	if !w.running() {
		return
	}
	w.mu.Lock()
	close(w.stop)
	w.handler = nil
	w.mu.Unlock()
	<-w.done
	w.stop = nil
	w.done = nil
}
