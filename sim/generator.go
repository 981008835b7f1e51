package sim

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"lautenbacher.net/accelmon/irq"
)

// minPeriod caps the simulated rate; the top selectors would otherwise spin
// a ticker at tens of kHz.
const minPeriod = time.Millisecond

// Generator latches a synthetic vibration into a Driver at the rate the
// driver was programmed with and raises an edge on a SimLine for every
// sample.
type Generator struct {
	drv       *Driver
	line      *irq.SimLine
	amplitude float64
	noise     float64
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewGenerator returns a stopped generator. amplitude is the peak of the
// X/Y sine in raw counts, noise the peak of the added uniform noise.
func NewGenerator(drv *Driver, line *irq.SimLine, amplitude, noise float64) *Generator {
	return &Generator{
		drv:       drv,
		line:      line,
		amplitude: amplitude,
		noise:     noise,
	}
}

// Start launches the generator goroutine.
func (g *Generator) Start() {
	g.stop = make(chan struct{})
	g.wg.Add(1)
	go g.run()
}

// Stop ends the goroutine and waits for it. Stopping a stopped generator
// does nothing.
func (g *Generator) Stop() {
	if g.stop == nil {
		return
	}
	close(g.stop)
	g.wg.Wait()
	g.stop = nil
}

func period(d *Driver) time.Duration {
	p := d.Rate().Frequency().Period()
	if p < minPeriod {
		return minPeriod
	}
	return p
}

func (g *Generator) run() {
	defer g.wg.Done()
	current := period(g.drv)
	ticker := time.NewTicker(current)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-g.stop:
			slog.Info("Ending sample generator go-routine")
			return
		case now := <-ticker.C:
			if !g.drv.Running() {
				continue
			}
			x, y, z := g.sample(now.Sub(start).Seconds())
			g.drv.Latch(x, y, z)
			g.line.Trigger()
			if p := period(g.drv); p != current {
				current = p
				ticker.Reset(p)
			}
		}
	}
}

// sample returns a 5 Hz vibration on X/Y on top of 1 g on Z at ±8g
// sensitivity.
func (g *Generator) sample(t float64) (int16, int16, int16) {
	const oneG = 4096
	w := 2 * math.Pi * 5 * t
	x := g.amplitude*math.Sin(w) + g.jitter()
	y := g.amplitude*math.Cos(w) + g.jitter()
	z := oneG + g.jitter()
	return clamp(x), clamp(y), clamp(z)
}

func (g *Generator) jitter() float64 {
	if g.noise == 0 {
		return 0
	}
	return (rand.Float64()*2 - 1) * g.noise
}

func clamp(v float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
}
