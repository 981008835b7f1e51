// Package firmware runs the acquisition loop around an accel.Accelerometer.
//
// Everything that touches the accelerometer happens on the goroutine
// calling Run. The data-ready callback, HTTP handlers and the config
// watcher only post notifications that Run picks up.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/kx134"
	"lautenbacher.net/accelmon/kx13x"
	"lautenbacher.net/accelmon/monitor"
	"lautenbacher.net/accelmon/sink"
	"lautenbacher.net/accelmon/util"
)

// ErrNotRunning is returned by Query when no Run loop answers.
var ErrNotRunning = errors.New("acquisition loop not running")

// Options tunes a Firmware. Sink, History and Status are optional.
type Options struct {
	InitRetries    int
	InitRetryDelay time.Duration
	MaxSamples     uint64 // 0 runs until the context ends
	Sink           sink.Sink
	History        *monitor.History
	Status         func(monitor.Status)
}

type query struct {
	key   accel.Key
	reply chan accel.QueryResponse
}

// optional capabilities of concrete adapters
type (
	pender interface{ Pending() bool }
	statser interface{ Stats() kx134.Stats }
)

// Firmware owns the acquisition loop of one accelerometer. DataReady,
// Update, Query and the HTTP handler may be called from any goroutine.
type Firmware struct {
	opts    Options
	ready   *util.AtomicEvent[time.Time]
	updates *util.AtomicMapEvent[accel.Key, uint32]
	queries chan query
	running atomic.Bool
	typeID  atomic.Uint32
	seq     atomic.Uint64
	latency atomic.Int64 // edge to sample delivery of the last sample
}

// New creates a Firmware. Fewer than one init attempt counts as one.
func New(opts Options) *Firmware {
	if opts.InitRetries < 1 {
		opts.InitRetries = 1
	}
	return &Firmware{
		opts:    opts,
		ready:   util.NewAtomicEvent[time.Time](),
		updates: util.NewAtomicMapEvent[accel.Key, uint32](),
		queries: make(chan query),
	}
}

// DataReady is the callback to hand to the adapter. It runs in interrupt
// context and only posts a notification.
func (f *Firmware) DataReady() {
	f.ready.Send(time.Now())
}

// Update queues a keyed configuration change. Run applies it between two
// samples and re-initialises the sensor if the stored value changed.
func (f *Firmware) Update(key accel.Key, value uint32) {
	f.updates.Send(key, value)
}

// Query reads a keyed configuration value through the Run loop.
func (f *Firmware) Query(ctx context.Context, key accel.Key) (accel.QueryResponse, error) {
	if !f.running.Load() {
		return accel.QueryResponse{}, ErrNotRunning
	}
	q := query{key: key, reply: make(chan accel.QueryResponse, 1)}
	select {
	case f.queries <- q:
	case <-ctx.Done():
		return accel.QueryResponse{}, ctx.Err()
	}
	select {
	case resp := <-q.reply:
		return resp, nil
	case <-ctx.Done():
		return accel.QueryResponse{}, ctx.Err()
	}
}

// Samples returns the number of samples delivered to the sinks.
func (f *Firmware) Samples() uint64 {
	return f.seq.Load()
}

// Latency returns the time from the data-ready edge to the delivery of the
// most recent sample.
func (f *Firmware) Latency() time.Duration {
	return time.Duration(f.latency.Load())
}

// TypeID returns the model tag of the accelerometer Run drives.
func (f *Firmware) TypeID() accel.TypeID {
	return accel.TypeID(f.typeID.Load())
}

// Run initialises and starts acc and pulls a sample for every data-ready
// notification until ctx ends or MaxSamples samples were taken.
func (f *Firmware) Run(ctx context.Context, acc accel.Accelerometer) error {
	f.typeID.Store(uint32(acc.TypeID()))
	slog.Info("Starting acquisition", "sensor", acc.TypeID())

	if err := f.initWithRetry(ctx, acc); err != nil {
		return err
	}
	if err := acc.Start(); err != nil {
		return err
	}
	f.running.Store(true)
	defer f.running.Store(false)
	defer acc.Stop()
	f.publishStatus(acc)

	for {
		select {
		case <-ctx.Done():
			f.logSummary(acc)
			return nil
		case <-f.ready.Channel():
			if f.takeSample(acc) {
				f.logSummary(acc)
				return nil
			}
		case <-f.updates.Channel():
			if err := f.apply(ctx, acc, f.updates.ConsumeValues()); err != nil {
				return err
			}
		case q := <-f.queries:
			q.reply <- acc.Get(q.key)
		}
	}
}

// takeSample reports whether MaxSamples is reached.
func (f *Firmware) takeSample(acc accel.Accelerometer) bool {
	if p, ok := acc.(pender); ok && !p.Pending() {
		// Already consumed with an earlier notification.
		return false
	}
	buf := acc.Process()
	f.latency.Store(int64(time.Since(f.ready.Value())))
	seq := f.seq.Add(1) - 1
	if f.opts.Sink != nil {
		if err := f.opts.Sink.Write(seq, buf); err != nil {
			slog.Warn("Sink write failed", "seq", seq, "error", err)
		}
	}
	if f.opts.History != nil {
		f.opts.History.Add(buf)
	}
	if seq%256 == 0 {
		f.publishStatus(acc)
	}
	return f.opts.MaxSamples > 0 && seq+1 >= f.opts.MaxSamples
}

func (f *Firmware) apply(ctx context.Context, acc accel.Accelerometer, values map[accel.Key]uint32) error {
	rate := acc.Get(accel.KeyRate)
	changed := false
	for key, value := range values {
		before := acc.Get(key)
		acc.Set(key, value)
		after := acc.Get(key)
		if !after.Supported() {
			slog.Debug("Ignoring key not supported by sensor", "key", key)
			continue
		}
		if after != before {
			slog.Info("Configuration changed", "key", key, "from", before, "to", after)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	acc.Stop()
	if err := f.initWithRetry(ctx, acc); err != nil {
		return err
	}
	if err := acc.Start(); err != nil {
		return err
	}
	if now := acc.Get(accel.KeyRate); now.Supported() && now != rate {
		f.recordRate(kx13x.OutputDataRate(now.Value))
	}
	f.publishStatus(acc)
	return nil
}

func (f *Firmware) recordRate(rate kx13x.OutputDataRate) {
	r, ok := f.opts.Sink.(sink.RateRecorder)
	if !ok {
		return
	}
	if err := r.RateChanged(f.seq.Load(), rate); err != nil {
		slog.Warn("Sink failed to record rate change", "rate", rate, "error", err)
	}
}

func (f *Firmware) initWithRetry(ctx context.Context, acc accel.Accelerometer) error {
	var err error
	for attempt := 1; attempt <= f.opts.InitRetries; attempt++ {
		if err = acc.Init(); err == nil {
			return nil
		}
		slog.Warn("Sensor init failed", "attempt", attempt, "of", f.opts.InitRetries, "error", err)
		if attempt == f.opts.InitRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.opts.InitRetryDelay):
		}
	}
	return fmt.Errorf("sensor init failed after %d attempts: %w", f.opts.InitRetries, err)
}

func (f *Firmware) status(acc accel.Accelerometer) monitor.Status {
	s := monitor.Status{
		Sensor:  acc.TypeID().String(),
		Samples: f.seq.Load(),
		Latency: f.Latency(),
	}
	if r := acc.Get(accel.KeyRate); r.Supported() {
		s.Rate = kx13x.OutputDataRate(r.Value).Frequency().String()
	}
	if st, ok := acc.(statser); ok {
		s.Dropped = st.Stats().Dropped
	}
	return s
}

func (f *Firmware) publishStatus(acc accel.Accelerometer) {
	if f.opts.Status != nil {
		f.opts.Status(f.status(acc))
	}
}

func (f *Firmware) logSummary(acc accel.Accelerometer) {
	s := f.status(acc)
	f.publishStatus(acc)
	slog.Info("Acquisition stopped", "samples", s.Samples, "dropped", s.Dropped)
}
