package sink

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tarm/serial"
	"lautenbacher.net/accelmon/accel"
)

// Frame layout on the wire: magic 0xA5 0x5A, sequence number as uint32 and the
// three axes as int16, all little endian.
const (
	frameMagic0 = 0xA5
	frameMagic1 = 0x5A
	FrameSize   = 2 + 4 + 3*2
)

// Serial streams samples to a host over a UART.
type Serial struct {
	port  io.WriteCloser
	frame [FrameSize]byte
}

// NewSerial opens the named port.
func NewSerial(name string, baud int) (*Serial, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return newSerial(port), nil
}

func newSerial(port io.WriteCloser) *Serial {
	return &Serial{port: port}
}

// EncodeFrame fills dst with one sample frame.
func EncodeFrame(dst *[FrameSize]byte, seq uint64, buf accel.DataBuffer) {
	dst[0] = frameMagic0
	dst[1] = frameMagic1
	binary.LittleEndian.PutUint32(dst[2:6], uint32(seq))
	binary.LittleEndian.PutUint16(dst[6:8], buf[0])
	binary.LittleEndian.PutUint16(dst[8:10], buf[1])
	binary.LittleEndian.PutUint16(dst[10:12], buf[2])
}

func (s *Serial) Write(seq uint64, buf accel.DataBuffer) error {
	EncodeFrame(&s.frame, seq, buf)
	if _, err := s.port.Write(s.frame[:]); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}
