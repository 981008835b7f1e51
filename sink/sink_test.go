package sink

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/kx13x"
)

type nopCloser struct {
	bytes.Buffer
	closed bool
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

type failingSink struct{}

func (failingSink) Write(uint64, accel.DataBuffer) error { return errors.New("boom") }
func (failingSink) Close() error                         { return nil }

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	session := uuid.New()
	s, err := NewCSV(path, session, kx13x.ODR100Hz, 0)
	require.NoError(t, err)

	require.NoError(t, s.Write(0, accel.DataBuffer{100, 0xFFCE, 4000}))
	require.NoError(t, s.Write(1, accel.DataBuffer{1, 2, 3}))
	require.NoError(t, s.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"session", session.String(), "odr", "100Hz"}, rows[0])
	assert.Equal(t, []string{"seq", "x_raw", "y_raw", "z_raw"}, rows[1])
	assert.Equal(t, []string{"0", "100", "-50", "4000"}, rows[2])
	assert.Equal(t, []string{"1", "1", "2", "3"}, rows[3])
}

func TestCSVConvertedToG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	s, err := NewCSV(path, uuid.New(), kx13x.ODR50Hz, GScale(0))
	require.NoError(t, err)
	require.NoError(t, s.Write(7, accel.DataBuffer{4096, uint16(0xF000), 0}))
	require.NoError(t, s.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "x_g", rows[1][1])
	assert.Equal(t, []string{"7", "1.000000", "-1.000000", "0.000000"}, rows[2])
}

func TestGScale(t *testing.T) {
	assert.Equal(t, 1.0/4096, GScale(0))
	assert.Equal(t, 1.0/2048, GScale(1))
	assert.Equal(t, 1.0/512, GScale(3))
}

func TestSerialFrame(t *testing.T) {
	port := &nopCloser{}
	s := newSerial(port)
	require.NoError(t, s.Write(0x01020304, accel.DataBuffer{100, 0xFFCE, 4000}))
	assert.Equal(t, []byte{
		0xA5, 0x5A,
		0x04, 0x03, 0x02, 0x01,
		0x64, 0x00,
		0xCE, 0xFF,
		0xA0, 0x0F,
	}, port.Bytes())
	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

func TestFanout(t *testing.T) {
	a, b := &nopCloser{}, &nopCloser{}
	f := Fanout{newSerial(a), failingSink{}, newSerial(b)}
	err := f.Write(1, accel.DataBuffer{1, 2, 3})
	assert.Error(t, err)
	assert.Equal(t, FrameSize, a.Len(), "a failing sink must not starve the others")
	assert.Equal(t, FrameSize, b.Len())
	assert.NoError(t, f.Close())
}

func TestCSVRecordsRateChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	s, err := NewCSV(path, uuid.New(), kx13x.ODR100Hz, 0)
	require.NoError(t, err)

	var rr RateRecorder = Fanout{s, failingSink{}}
	require.NoError(t, s.Write(0, accel.DataBuffer{1, 1, 1}))
	require.NoError(t, rr.RateChanged(1, kx13x.ODR800Hz))
	require.NoError(t, s.Write(1, accel.DataBuffer{2, 2, 2}))
	require.NoError(t, s.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 5)
	assert.Equal(t, "100Hz", rows[0][3])
	assert.Equal(t, []string{"odr", "1", "800Hz", ""}, rows[3])
	assert.Equal(t, "1", rows[4][0])
}
