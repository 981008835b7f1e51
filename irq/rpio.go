package irq

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/physic"
)

// DefaultRpioPollInterval is the event detect read interval used when none
// is configured. It is well below the period of every rate up to 3.2kHz.
const DefaultRpioPollInterval = 100 * time.Microsecond

// detectPin is the part of rpio.Pin the line uses.
type detectPin interface {
	Input()
	PullDown()
	Detect(edge rpio.Edge)
	EdgeDetected() bool
}

// RpioLine polls the BCM edge detect status of a pin through go-rpio.
// rpio.Open must have succeeded before Arm.
//
// The event detect bit latches a single edge, so edges that arrive while the
// watcher sleeps collapse into one. The line therefore never sleeps longer
// than a quarter of the edge period passed to SetEdgeRate.
type RpioLine struct {
	watcher
	pin    detectPin
	num    int
	poll   time.Duration
	period time.Duration
	active atomic.Int64 // poll interval in use by the watcher
}

var _ Paced = (*RpioLine)(nil)

// NewRpioLine returns a line on BCM pin num. poll is the longest interval
// between reads of the event detect status register.
func NewRpioLine(num int, poll time.Duration) *RpioLine {
	return newRpioLine(rpio.Pin(num), num, poll)
}

func newRpioLine(pin detectPin, num int, poll time.Duration) *RpioLine {
	if poll <= 0 {
		poll = DefaultRpioPollInterval
	}
	return &RpioLine{pin: pin, num: num, poll: poll}
}

// SetEdgeRate caps the poll interval at a quarter of the period of f. It
// takes effect on the next Arm.
func (l *RpioLine) SetEdgeRate(f physic.Frequency) {
	l.period = 0
	if f > 0 {
		l.period = f.Period()
	}
}

// interval returns the poll interval Arm installs.
func (l *RpioLine) interval() time.Duration {
	if limit := l.period / 4; limit > 0 && l.poll > limit {
		return limit
	}
	return l.poll
}

func (l *RpioLine) Arm(edge Edge, handler func()) error {
	l.active.Store(int64(l.interval()))
	l.pin.Input()
	l.pin.PullDown()
	// Clear a stale event before detection starts.
	l.pin.EdgeDetected()
	l.pin.Detect(rpioEdge(edge))
	l.start(handler, l.wait)
	return nil
}

func (l *RpioLine) wait() bool {
	if l.pin.EdgeDetected() {
		return true
	}
	time.Sleep(time.Duration(l.active.Load()))
	return false
}

func (l *RpioLine) Disarm() error {
	if !l.running() {
		return nil
	}
	l.halt()
	l.pin.Detect(rpio.NoEdge)
	return nil
}

func (l *RpioLine) String() string {
	return fmt.Sprintf("rpio:GPIO%d", l.num)
}

func rpioEdge(e Edge) rpio.Edge {
	switch e {
	case FallingEdge:
		return rpio.FallEdge
	case BothEdges:
		return rpio.AnyEdge
	default:
		return rpio.RiseEdge
	}
}
