// Package accel defines the capability set every accelerometer adapter of
// the acquisition firmware implements, together with the result types
// shared between adapters.
package accel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by Start when Init has not succeeded yet.
	ErrNotInitialized = errors.New("accelerometer not initialized")
	// ErrBusy is returned by Init while the adapter is sampling.
	ErrBusy = errors.New("accelerometer is sampling, stop it first")
)

// TypeID distinguishes the sensor models behind the Accelerometer interface.
type TypeID uint8

const (
	TypeNone TypeID = iota
	TypeADC
	TypeKX134
)

func (t TypeID) String() string {
	switch t {
	case TypeADC:
		return "ADC"
	case TypeKX134:
		return "KX134"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Key selects a configuration value in Get and Set.
type Key byte

// Keys known across the adapter family. An adapter only honours the subset
// that applies to its model.
const (
	KeyRate Key = 'r' // output data rate selector
)

func (k Key) String() string {
	return string(rune(k))
}

// Status tags a QueryResponse.
type Status uint8

const (
	StatusOK Status = iota
	StatusUnsupported
)

// QueryResponse is the result of a keyed configuration read.
type QueryResponse struct {
	Status Status
	Value  uint32
}

// Value builds a response carrying v.
func Value(v uint32) QueryResponse {
	return QueryResponse{Status: StatusOK, Value: v}
}

// Unsupported builds the response for a key the adapter does not know.
func Unsupported() QueryResponse {
	return QueryResponse{Status: StatusUnsupported}
}

// Supported reports whether the response carries a value.
func (q QueryResponse) Supported() bool {
	return q.Status == StatusOK
}

func (q QueryResponse) String() string {
	if !q.Supported() {
		return "unsupported"
	}
	return fmt.Sprintf("%d", q.Value)
}

// DataBuffer is a view on an adapter's sample storage. The adapter reuses
// the backing array, so the contents are only valid until the next call to
// Process. Callers that need to keep a sample must copy it.
type DataBuffer []uint16

// Int16 returns element i reinterpreted as the signed value the sensor
// produced.
func (b DataBuffer) Int16(i int) int16 {
	return int16(b[i])
}

// Accelerometer is the capability set the firmware drives. Implementations
// are not safe for concurrent use: every method runs on the firmware's main
// loop. Only the data-ready callback handed to the constructor of an
// implementation runs in interrupt context.
type Accelerometer interface {
	// TypeID returns the fixed model tag.
	TypeID() TypeID

	// Init probes the device and programs the stored configuration. A
	// failed Init leaves the adapter uninitialized; it can be retried.
	Init() error

	// Start arms data-ready signaling. Calling it again is harmless.
	Start() error

	// Stop disarms data-ready signaling. No callback fires after it
	// returns.
	Stop()

	// Process reads the latest sample and returns the reused buffer.
	// Without a pending sample the previous contents are returned.
	Process() DataBuffer

	// Set stores a configuration value. Unknown keys are ignored.
	Set(key Key, value uint32)

	// Get reads a configuration value.
	Get(key Key) QueryResponse
}
