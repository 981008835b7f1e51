package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/kx13x"
)

// CSV writes one row per sample. The first row identifies the recording
// session and the output data rate, the second names the columns. A rate
// change later in the session adds a row "odr,<seq>,<rate>," ahead of the
// first sample taken at the new rate.
type CSV struct {
	file  *os.File
	w     *csv.Writer
	scale float64
	row   [4]string
}

// NewCSV creates path. A non-zero scale converts raw counts to g, see
// GScale; zero keeps the signed raw values.
func NewCSV(path string, session uuid.UUID, rate kx13x.OutputDataRate, scale float64) (*CSV, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}
	s := &CSV{file: file, w: csv.NewWriter(file), scale: scale}
	unit := "raw"
	if scale != 0 {
		unit = "g"
	}
	header := [][]string{
		{"session", session.String(), "odr", rate.Frequency().String()},
		{"seq", "x_" + unit, "y_" + unit, "z_" + unit},
	}
	if err := s.w.WriteAll(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	return s, nil
}

func (s *CSV) Write(seq uint64, buf accel.DataBuffer) error {
	s.row[0] = strconv.FormatUint(seq, 10)
	for i := 0; i < 3; i++ {
		v := buf.Int16(i)
		if s.scale != 0 {
			s.row[i+1] = strconv.FormatFloat(float64(v)*s.scale, 'f', 6, 64)
		} else {
			s.row[i+1] = strconv.Itoa(int(v))
		}
	}
	return s.w.Write(s.row[:])
}

// RateChanged writes the marker row for a new output data rate.
func (s *CSV) RateChanged(seq uint64, rate kx13x.OutputDataRate) error {
	return s.w.Write([]string{"odr", strconv.FormatUint(seq, 10), rate.Frequency().String(), ""})
}

func (s *CSV) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
