// Package kx13x is a minimal driver for the Kionix KX132/KX134
// accelerometers on an I2C bus.
package kx13x

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// ErrWrongDevice is returned by Begin when WHO_AM_I does not match.
var ErrWrongDevice = errors.New("kx13x: unexpected device")

// RawOutputData is one raw readout of the three axes.
type RawOutputData struct {
	X, Y, Z int16
}

func (r RawOutputData) String() string {
	return fmt.Sprintf("X:%d Y:%d Z:%d", r.X, r.Y, r.Z)
}

// Opts configures a Dev.
type Opts struct {
	Address          uint16 // I2C address, DefaultAddress or AlternateAddress
	ExpectedDeviceID byte   // WHO_AM_I value Begin accepts
	GRange           byte   // GSEL bits, 0 selects the smallest range
}

// DefaultOpts targets a KX134 on its default address at ±8g.
var DefaultOpts = Opts{
	Address:          DefaultAddress,
	ExpectedDeviceID: WhoAmIKX134,
	GRange:           0,
}

// Dev is a KX13x on an I2C bus. CNTL1 is kept in a shadow copy so every bus
// transaction after Begin is a plain register write.
type Dev struct {
	d     i2c.Dev
	opts  Opts
	cntl1 byte
}

// New returns a Dev bound to bus. No bus traffic happens until Begin.
func New(bus i2c.Bus, o *Opts) *Dev {
	if o == nil {
		o = &DefaultOpts
	}
	return &Dev{
		d:     i2c.Dev{Bus: bus, Addr: o.Address},
		opts:  *o,
		cntl1: cntl1Res | (o.GRange<<3)&cntl1GSel,
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("KX13x{addr:%#x}", d.opts.Address)
}

// Begin checks WHO_AM_I.
func (d *Dev) Begin() error {
	id, err := d.readRegister(regWhoAmI)
	if err != nil {
		return fmt.Errorf("kx13x: read WHO_AM_I: %w", err)
	}
	if id != d.opts.ExpectedDeviceID {
		return fmt.Errorf("%w: WHO_AM_I %#x, want %#x", ErrWrongDevice, id, d.opts.ExpectedDeviceID)
	}
	return nil
}

// EnableAccel switches between stand-by and operating mode. Rate and
// interrupt settings can only be changed in stand-by.
func (d *Dev) EnableAccel(on bool) error {
	if on {
		return d.writeCntl1(d.cntl1 | cntl1PC1)
	}
	return d.writeCntl1(d.cntl1 &^ cntl1PC1)
}

// SetOutputDataRate programs the OSA bits. Only the low four bits of rate
// are used.
func (d *Dev) SetOutputDataRate(rate OutputDataRate) error {
	if err := d.writeRegister(regODCntl, byte(rate)&RateMask); err != nil {
		return fmt.Errorf("kx13x: set output data rate: %w", err)
	}
	return nil
}

// EnableDataReady enables the data ready engine and routes it to INT1 as an
// active-high pulse.
func (d *Dev) EnableDataReady(on bool) error {
	if !on {
		if err := d.writeRegister(regInc4, 0); err != nil {
			return fmt.Errorf("kx13x: route interrupt: %w", err)
		}
		return d.writeCntl1(d.cntl1 &^ cntl1DRDYE)
	}
	if err := d.writeCntl1(d.cntl1 | cntl1DRDYE); err != nil {
		return err
	}
	if err := d.writeRegister(regInc1, inc1IEN1|inc1IEA1|inc1IEL1); err != nil {
		return fmt.Errorf("kx13x: enable interrupt pin: %w", err)
	}
	if err := d.writeRegister(regInc4, inc4DRDYI1); err != nil {
		return fmt.Errorf("kx13x: route interrupt: %w", err)
	}
	return nil
}

// ClearInterrupt releases a latched interrupt by reading INT_REL.
func (d *Dev) ClearInterrupt() error {
	if _, err := d.readRegister(regIntRel); err != nil {
		return fmt.Errorf("kx13x: release interrupt: %w", err)
	}
	return nil
}

// RawAccelData reads XOUT_L..ZOUT_H in one burst into out.
func (d *Dev) RawAccelData(out *RawOutputData) error {
	var rx [rawDataLen]byte
	if err := d.d.Tx([]byte{regXOutL}, rx[:]); err != nil {
		return fmt.Errorf("kx13x: read output data: %w", err)
	}
	out.X = int16(binary.LittleEndian.Uint16(rx[0:2]))
	out.Y = int16(binary.LittleEndian.Uint16(rx[2:4]))
	out.Z = int16(binary.LittleEndian.Uint16(rx[4:6]))
	return nil
}

func (d *Dev) writeCntl1(v byte) error {
	if err := d.writeRegister(regCntl1, v); err != nil {
		return fmt.Errorf("kx13x: write CNTL1: %w", err)
	}
	d.cntl1 = v
	return nil
}

func (d *Dev) readRegister(reg byte) (byte, error) {
	var rx [1]byte
	err := d.d.Tx([]byte{reg}, rx[:])
	return rx[0], err
}

func (d *Dev) writeRegister(reg, value byte) error {
	return d.d.Tx([]byte{reg, value}, nil)
}
