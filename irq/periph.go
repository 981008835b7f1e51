package irq

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// PeriphLine watches a periph.io GPIO pin. host.Init must have run before
// the pin is looked up.
type PeriphLine struct {
	watcher
	pin  gpio.PinIO
	poll time.Duration
}

// NewPeriphLine looks up GPIO<num> in the periph registry.
func NewPeriphLine(num int, poll time.Duration) (*PeriphLine, error) {
	name := fmt.Sprintf("GPIO%d", num)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find pin %s", name)
	}
	return NewPeriphLineFromPin(pin, poll), nil
}

// NewPeriphLineFromPin wraps an already resolved pin.
func NewPeriphLineFromPin(pin gpio.PinIO, poll time.Duration) *PeriphLine {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &PeriphLine{pin: pin, poll: poll}
}

func (l *PeriphLine) Arm(edge Edge, handler func()) error {
	if err := l.pin.In(gpio.PullDown, periphEdge(edge)); err != nil {
		return fmt.Errorf("failed to arm %s: %w", l.pin, err)
	}
	l.start(handler, func() bool { return l.pin.WaitForEdge(l.poll) })
	return nil
}

func (l *PeriphLine) Disarm() error {
	if !l.running() {
		return nil
	}
	l.halt()
	if err := l.pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return fmt.Errorf("failed to disarm %s: %w", l.pin, err)
	}
	return nil
}

func (l *PeriphLine) String() string {
	return "periph:" + l.pin.Name()
}

func periphEdge(e Edge) gpio.Edge {
	switch e {
	case FallingEdge:
		return gpio.FallingEdge
	case BothEdges:
		return gpio.BothEdges
	default:
		return gpio.RisingEdge
	}
}
