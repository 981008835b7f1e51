package irq

import (
	"fmt"
	"sync"
)

// SimLine is a Line without hardware. Trigger plays the part of an edge on
// the pin and runs the handler on the caller's goroutine.
type SimLine struct {
	mu      sync.Mutex
	pin     int
	edge    Edge
	handler func()
}

// NewSimLine creates a disarmed line named after pin.
func NewSimLine(pin int) *SimLine {
	return &SimLine{pin: pin}
}

func (l *SimLine) Arm(edge Edge, handler func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.edge = edge
	l.handler = handler
	return nil
}

func (l *SimLine) Disarm() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = nil
	return nil
}

// Armed reports whether a handler is installed.
func (l *SimLine) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handler != nil
}

// Trigger delivers one edge. It reports whether a handler ran.
func (l *SimLine) Trigger() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handler == nil {
		return false
	}
	l.handler()
	return true
}

func (l *SimLine) String() string {
	return fmt.Sprintf("sim:GPIO%d", l.pin)
}
