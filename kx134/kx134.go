// Package kx134 binds a Kionix KX134 and its data-ready interrupt pin to the
// accel.Accelerometer interface.
package kx134

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/irq"
	"lautenbacher.net/accelmon/kx13x"
)

// Driver is the part of the vendor driver the adapter uses. *kx13x.Dev
// implements it.
type Driver interface {
	Begin() error
	EnableAccel(on bool) error
	SetOutputDataRate(rate kx13x.OutputDataRate) error
	EnableDataReady(on bool) error
	ClearInterrupt() error
	RawAccelData(out *kx13x.RawOutputData) error
}

// State is the adapter lifecycle state.
type State int

const (
	Uninit State = iota
	Ready
	Sampling
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Ready:
		return "ready"
	case Sampling:
		return "sampling"
	default:
		return "unknown"
	}
}

// Config holds the values reachable through Get and Set.
type Config struct {
	OutputDataRate byte // only the lower four bits are used
}

// DefaultConfig selects 100 Hz.
func DefaultConfig() Config {
	return Config{OutputDataRate: byte(kx13x.DefaultRate)}
}

// Stats counts samples handed over by the interrupt.
type Stats struct {
	Samples uint64 // samples read by Process
	Dropped uint64 // edges that arrived before the previous sample was read
}

// Adapter implements accel.Accelerometer for the KX134.
//
// All methods belong to the firmware main loop. The only code that runs in
// interrupt context is onDataReady, which touches nothing but the pending
// flag, the drop counter and the callback.
type Adapter struct {
	dev      Driver
	line     irq.Line
	callback func()
	cfg      Config
	state    State
	rate     kx13x.OutputDataRate // programmed by the last Init

	pending atomic.Bool
	dropped atomic.Uint64
	samples uint64

	raw kx13x.RawOutputData
	buf [3]uint16
}

var _ accel.Accelerometer = (*Adapter)(nil)

// New returns an uninitialized adapter. callback runs in interrupt context
// once per data-ready edge while the adapter is started; it must only
// notify the main loop.
func New(dev Driver, line irq.Line, callback func()) *Adapter {
	return &Adapter{
		dev:      dev,
		line:     line,
		callback: callback,
		cfg:      DefaultConfig(),
	}
}

func (a *Adapter) TypeID() accel.TypeID {
	return accel.TypeKX134
}

// State returns the lifecycle state.
func (a *Adapter) State() State {
	return a.state
}

// Config returns a copy of the stored configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Init probes the sensor and programs the stored output data rate with
// data-ready routed to INT1. It fails with accel.ErrBusy while sampling.
func (a *Adapter) Init() error {
	if a.state == Sampling {
		return accel.ErrBusy
	}
	rate := kx13x.OutputDataRate(a.cfg.OutputDataRate & kx13x.RateMask)
	if err := a.program(rate); err != nil {
		a.state = Uninit
		return fmt.Errorf("kx134 init: %w", err)
	}
	a.state = Ready
	a.rate = rate
	slog.Info("KX134 initialised", "rate", rate, "line", a.line)
	return nil
}

func (a *Adapter) program(rate kx13x.OutputDataRate) error {
	if err := a.dev.Begin(); err != nil {
		return err
	}
	if err := a.dev.EnableAccel(false); err != nil {
		return err
	}
	if err := a.dev.SetOutputDataRate(rate); err != nil {
		return err
	}
	if err := a.dev.EnableDataReady(true); err != nil {
		return err
	}
	if err := a.dev.ClearInterrupt(); err != nil {
		return err
	}
	return a.dev.EnableAccel(true)
}

// Start arms the data-ready line on the rising edge. A polling line is told
// the programmed rate first so it keeps up with every sample. Before a
// successful Init it does nothing and returns accel.ErrNotInitialized.
func (a *Adapter) Start() error {
	if a.state == Uninit {
		slog.Warn("KX134 start ignored, not initialised")
		return accel.ErrNotInitialized
	}
	if p, ok := a.line.(irq.Paced); ok {
		p.SetEdgeRate(a.rate.Frequency())
	}
	if err := a.line.Arm(irq.RisingEdge, a.onDataReady); err != nil {
		return fmt.Errorf("kx134 start: %w", err)
	}
	a.state = Sampling
	return nil
}

// Stop disarms the data-ready line. A sample latched before Stop can still
// be read by one Process call.
func (a *Adapter) Stop() {
	if a.state != Sampling {
		return
	}
	if err := a.line.Disarm(); err != nil {
		slog.Error("KX134 failed to disarm data-ready line", "error", err)
	}
	a.state = Ready
}

func (a *Adapter) onDataReady() {
	if a.pending.Swap(true) {
		a.dropped.Add(1)
	}
	if a.callback != nil {
		a.callback()
	}
}

// Pending reports whether a data-ready edge arrived since the last Process.
func (a *Adapter) Pending() bool {
	return a.pending.Load()
}

// Process returns the sample buffer, refreshed from the sensor if a
// data-ready edge is pending. Before Init the buffer is all zeroes. The
// returned slice aliases adapter storage and is overwritten by the next
// Process call.
func (a *Adapter) Process() accel.DataBuffer {
	if a.state == Uninit {
		return a.buf[:]
	}
	if !a.pending.Swap(false) {
		return a.buf[:]
	}
	if err := a.dev.RawAccelData(&a.raw); err != nil {
		slog.Debug("KX134 read failed, keeping previous sample", "error", err)
		return a.buf[:]
	}
	a.buf[0] = uint16(a.raw.X)
	a.buf[1] = uint16(a.raw.Y)
	a.buf[2] = uint16(a.raw.Z)
	a.samples++
	return a.buf[:]
}

// Stats returns the sample counters.
func (a *Adapter) Stats() Stats {
	return Stats{Samples: a.samples, Dropped: a.dropped.Load()}
}

// Set stores a configuration value. Key 'r' takes the output data rate
// selector, masked to four bits; it is programmed by the next Init. Other
// keys are ignored.
func (a *Adapter) Set(key accel.Key, value uint32) {
	switch key {
	case accel.KeyRate:
		a.cfg.OutputDataRate = byte(value) & kx13x.RateMask
	default:
		slog.Debug("KX134 ignoring unknown key", "key", key)
	}
}

func (a *Adapter) Get(key accel.Key) accel.QueryResponse {
	switch key {
	case accel.KeyRate:
		return accel.Value(uint32(a.cfg.OutputDataRate))
	default:
		return accel.Unsupported()
	}
}
