// Package sink consumes the samples the firmware pulls from the
// accelerometer.
package sink

import (
	"errors"
	"math"

	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/kx13x"
)

// Sink receives sample buffers. buf is only valid during the call.
type Sink interface {
	Write(seq uint64, buf accel.DataBuffer) error
	Close() error
}

// RateRecorder is implemented by sinks that note a change of the output data
// rate in their stream. seq is the first sample taken at the new rate.
type RateRecorder interface {
	RateChanged(seq uint64, rate kx13x.OutputDataRate) error
}

// GScale returns g per LSB for the KX134 range selector gsel (0 = ±8g,
// 3 = ±64g).
func GScale(gsel byte) float64 {
	return 1 / math.Pow(2, float64(15-(3+int(gsel))))
}

// Fanout writes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Write(seq uint64, buf accel.DataBuffer) error {
	var errs []error
	for _, s := range f {
		if err := s.Write(seq, buf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RateChanged forwards to every sink that records rate changes.
func (f Fanout) RateChanged(seq uint64, rate kx13x.OutputDataRate) error {
	var errs []error
	for _, s := range f {
		if r, ok := s.(RateRecorder); ok {
			if err := r.RateChanged(seq, rate); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
