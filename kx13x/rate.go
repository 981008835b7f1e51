package kx13x

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// OutputDataRate is the 4-bit OSA selector of the ODCNTL register.
type OutputDataRate byte

// Selectors are named after their frequency; the sub-hertz steps in mHz.
const (
	ODR781mHz OutputDataRate = iota
	ODR1563mHz
	ODR3125mHz
	ODR6250mHz
	ODR12500mHz
	ODR25Hz
	ODR50Hz
	ODR100Hz
	ODR200Hz
	ODR400Hz
	ODR800Hz
	ODR1600Hz
	ODR3200Hz
	ODR6400Hz
	ODR12800Hz
	ODR25600Hz
)

// RateMask selects the bits of a value that form an OutputDataRate.
const RateMask = 0x0F

// DefaultRate is the selector the sensor is programmed with unless
// configured otherwise.
const DefaultRate = ODR100Hz

var rateFrequencies = [16]physic.Frequency{
	781 * physic.MilliHertz,
	1563 * physic.MilliHertz,
	3125 * physic.MilliHertz,
	6250 * physic.MilliHertz,
	12500 * physic.MilliHertz,
	25 * physic.Hertz,
	50 * physic.Hertz,
	100 * physic.Hertz,
	200 * physic.Hertz,
	400 * physic.Hertz,
	800 * physic.Hertz,
	1600 * physic.Hertz,
	3200 * physic.Hertz,
	6400 * physic.Hertz,
	12800 * physic.Hertz,
	25600 * physic.Hertz,
}

// Frequency returns the sampling frequency the selector programs. Bits above
// the selector are ignored.
func (r OutputDataRate) Frequency() physic.Frequency {
	return rateFrequencies[r&RateMask]
}

func (r OutputDataRate) String() string {
	return fmt.Sprintf("0x%X(%s)", byte(r&RateMask), r.Frequency())
}
