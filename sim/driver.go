// Package sim stands in for the KX134 and its interrupt pin when the
// firmware runs without hardware.
package sim

import (
	"errors"
	"sync"

	"lautenbacher.net/accelmon/kx13x"
)

// ErrNoDevice is returned while the simulated sensor is unplugged.
var ErrNoDevice = errors.New("sim: no device on bus")

// Driver is an in-memory KX134. The generator goroutine latches samples,
// the firmware main loop reads them.
type Driver struct {
	mu        sync.Mutex
	absent    bool
	failReads bool
	begun     bool
	enabled   bool
	drdy      bool
	rate      kx13x.OutputDataRate
	latched   kx13x.RawOutputData
	reads     int
}

// NewDriver creates a present sensor at the default rate that still needs
// Begin.
func NewDriver() *Driver {
	return &Driver{rate: kx13x.DefaultRate}
}

// SetAbsent makes Begin fail, as if the sensor did not answer.
func (d *Driver) SetAbsent(absent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.absent = absent
}

// SetFailReads makes RawAccelData fail.
func (d *Driver) SetFailReads(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failReads = fail
}

// Latch stores the sample the next RawAccelData returns.
func (d *Driver) Latch(x, y, z int16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latched = kx13x.RawOutputData{X: x, Y: y, Z: z}
}

// Rate returns the programmed output data rate.
func (d *Driver) Rate() kx13x.OutputDataRate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// Running reports whether the sensor is in operating mode with data ready
// enabled.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begun && d.enabled && d.drdy
}

// Reads returns the number of successful RawAccelData calls.
func (d *Driver) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

func (d *Driver) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.absent {
		d.begun = false
		return ErrNoDevice
	}
	d.begun = true
	return nil
}

func (d *Driver) EnableAccel(on bool) error {
	return d.update(func() { d.enabled = on })
}

func (d *Driver) SetOutputDataRate(rate kx13x.OutputDataRate) error {
	return d.update(func() { d.rate = rate & kx13x.RateMask })
}

func (d *Driver) EnableDataReady(on bool) error {
	return d.update(func() { d.drdy = on })
}

func (d *Driver) ClearInterrupt() error {
	return d.update(func() {})
}

func (d *Driver) RawAccelData(out *kx13x.RawOutputData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.absent || d.failReads {
		return ErrNoDevice
	}
	*out = d.latched
	d.reads++
	return nil
}

func (d *Driver) update(f func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.begun || d.absent {
		return ErrNoDevice
	}
	f()
	return nil
}
