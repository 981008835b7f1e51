// Package monitor keeps a rolling window of samples and shows per-axis
// statistics in a terminal viewer.
package monitor

import (
	"math"
	"slices"
	"sync"

	"github.com/gammazero/deque"
	"lautenbacher.net/accelmon/accel"
)

// Axes in buffer order.
var Axes = [3]string{"X", "Y", "Z"}

// AxisStats summarises one axis over the window, in raw counts.
type AxisStats struct {
	Min    int
	Max    int
	Mean   float64
	Median float64
	StdDev float64
}

// History keeps the last capacity samples of every axis. It is safe for
// concurrent use.
type History struct {
	mu       sync.Mutex
	capacity int
	axes     [3]deque.Deque[int]
	scratch  []int
}

// NewHistory creates a history holding up to capacity samples per axis.
func NewHistory(capacity int) *History {
	h := &History{capacity: capacity}
	for i := range h.axes {
		h.axes[i].Grow(capacity)
	}
	return h
}

// Add copies buf into the history.
func (h *History) Add(buf accel.DataBuffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.axes {
		q := &h.axes[i]
		if q.Len() == h.capacity {
			q.PopFront()
		}
		q.PushBack(int(buf.Int16(i)))
	}
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.axes[0].Len()
}

// Stats computes the statistics of the window for every axis.
func (h *History) Stats() [3]AxisStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ret [3]AxisStats
	for i := range h.axes {
		ret[i], h.scratch = axisStats(&h.axes[i], h.scratch)
	}
	return ret
}

// axisStats takes min, max, mean and deviation in a single pass over q. The
// median needs an ordered copy, made in scratch, which is returned for reuse.
func axisStats(q *deque.Deque[int], scratch []int) (AxisStats, []int) {
	n := q.Len()
	if n == 0 {
		return AxisStats{}, scratch
	}

	scratch = scratch[:0]
	var sum, sumOfSquares float64
	lo, hi := q.Front(), q.Front()
	for i := range n {
		v := q.At(i)
		lo = min(lo, v)
		hi = max(hi, v)
		sum += float64(v)
		sumOfSquares += float64(v) * float64(v)
		scratch = append(scratch, v)
	}
	mean := sum / float64(n)
	// Population variance; clamp rounding noise on a constant signal.
	variance := math.Max(0, sumOfSquares/float64(n)-mean*mean)

	slices.Sort(scratch)
	mid := n / 2
	median := float64(scratch[mid])
	if n%2 == 0 {
		median = float64(scratch[mid-1]+scratch[mid]) / 2
	}

	return AxisStats{
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		Median: median,
		StdDev: math.Sqrt(variance),
	}, scratch
}
