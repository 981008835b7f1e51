package kx134

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/accelmon/accel"
	"lautenbacher.net/accelmon/irq"
	"lautenbacher.net/accelmon/kx13x"
	"lautenbacher.net/accelmon/sim"
	"periph.io/x/conn/v3/physic"
)

type fixture struct {
	drv     *sim.Driver
	line    *irq.SimLine
	adapter *Adapter
	calls   int
}

func newFixture() *fixture {
	f := &fixture{
		drv:  sim.NewDriver(),
		line: irq.NewSimLine(irq.DefaultPin),
	}
	f.adapter = New(f.drv, f.line, func() { f.calls++ })
	return f
}

// edge latches a sample and raises the data-ready line.
func (f *fixture) edge(x, y, z int16) bool {
	f.drv.Latch(x, y, z)
	return f.line.Trigger()
}

func TestTypeID(t *testing.T) {
	var a accel.Accelerometer = newFixture().adapter
	assert.Equal(t, accel.TypeKX134, a.TypeID())
}

func TestDefaultConfig(t *testing.T) {
	f := newFixture()
	assert.Equal(t, accel.Value(0x07), f.adapter.Get(accel.KeyRate))
}

func TestSetGetRateRoundTrip(t *testing.T) {
	f := newFixture()
	for r := uint32(0); r <= 0x0F; r++ {
		f.adapter.Set(accel.KeyRate, r)
		assert.Equal(t, accel.Value(r), f.adapter.Get(accel.KeyRate), "rate %#x", r)
	}
}

func TestSetRateMasksUpperBits(t *testing.T) {
	f := newFixture()
	f.adapter.Set(accel.KeyRate, 0xFFFFFF3A)
	assert.Equal(t, accel.Value(0x0A), f.adapter.Get(accel.KeyRate))
}

func TestUnknownKeys(t *testing.T) {
	f := newFixture()
	for _, k := range []accel.Key{'g', 'x', 0, 'R', 0xFF} {
		f.adapter.Set(k, 3)
		assert.Equal(t, accel.Unsupported(), f.adapter.Get(k), "key %q", k)
	}
	assert.Equal(t, DefaultConfig(), f.adapter.Config(), "unknown keys must not touch the config")
}

func TestInitProgramsRate(t *testing.T) {
	f := newFixture()
	f.adapter.Set(accel.KeyRate, uint32(kx13x.ODR400Hz))
	require.NoError(t, f.adapter.Init())
	assert.Equal(t, Ready, f.adapter.State())
	assert.Equal(t, kx13x.ODR400Hz, f.drv.Rate())
	assert.True(t, f.drv.Running())
}

func TestInitFailureIsRetryable(t *testing.T) {
	f := newFixture()
	f.adapter.Set(accel.KeyRate, 0x09)
	f.drv.SetAbsent(true)

	assert.Error(t, f.adapter.Init())
	assert.Equal(t, Uninit, f.adapter.State())
	assert.Error(t, f.adapter.Init())
	assert.Equal(t, accel.Value(0x09), f.adapter.Get(accel.KeyRate))

	f.drv.SetAbsent(false)
	require.NoError(t, f.adapter.Init())
	assert.Equal(t, Ready, f.adapter.State())
	assert.Equal(t, kx13x.ODR400Hz, f.drv.Rate())
}

func TestInitWhileSamplingIsRefused(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	assert.ErrorIs(t, f.adapter.Init(), accel.ErrBusy)
	assert.Equal(t, Sampling, f.adapter.State())
}

func TestStartBeforeInit(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.adapter.Start(), accel.ErrNotInitialized)
	assert.False(t, f.line.Armed())
	assert.False(t, f.edge(1, 2, 3))
	assert.Equal(t, 0, f.calls)
}

func TestProcessBeforeInitIsZeroed(t *testing.T) {
	f := newFixture()
	f.drv.Latch(5, 5, 5)
	assert.Equal(t, accel.DataBuffer{0, 0, 0}, f.adapter.Process())
	assert.Equal(t, 0, f.drv.Reads())
}

func TestOneCallbackPerEdge(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	// Starting twice does not double the callbacks.
	require.NoError(t, f.adapter.Start())

	for i := 1; i <= 5; i++ {
		f.edge(int16(i), 0, 0)
		assert.Equal(t, i, f.calls)
		assert.True(t, f.adapter.Pending())
		assert.Equal(t, int16(i), f.adapter.Process().Int16(0))
		assert.False(t, f.adapter.Pending())
	}
	assert.Equal(t, Stats{Samples: 5}, f.adapter.Stats())
}

func TestNoCallbacksAfterStop(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.edge(1, 1, 1)
	f.adapter.Stop()
	f.adapter.Stop()
	assert.Equal(t, Ready, f.adapter.State())

	for i := 0; i < 3; i++ {
		assert.False(t, f.edge(9, 9, 9))
	}
	assert.Equal(t, 1, f.calls)
}

func TestSampleLatchedBeforeStopIsReadable(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.edge(7, 8, 9)
	f.adapter.Stop()

	assert.Equal(t, accel.DataBuffer{7, 8, 9}, f.adapter.Process())
	assert.False(t, f.adapter.Pending())
	assert.Equal(t, 1, f.drv.Reads())
}

func TestProcessWithoutEdgeIsStale(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.edge(10, 20, 30)

	first := append(accel.DataBuffer(nil), f.adapter.Process()...)
	// The sensor moves on but no edge is raised.
	f.drv.Latch(-1, -1, -1)
	second := f.adapter.Process()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.drv.Reads())
}

func TestProcessReusesBuffer(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.edge(1, 2, 3)
	first := f.adapter.Process()
	f.edge(4, 5, 6)
	f.adapter.Process()
	assert.Equal(t, accel.DataBuffer{4, 5, 6}, first, "buffer is a view on adapter storage")
}

func TestReadErrorKeepsStaleSample(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.edge(1, 2, 3)
	f.adapter.Process()

	f.drv.SetFailReads(true)
	f.edge(4, 5, 6)
	assert.Equal(t, accel.DataBuffer{1, 2, 3}, f.adapter.Process())
}

func TestDroppedSamplesAreCounted(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.edge(1, 1, 1)
	f.edge(2, 2, 2)
	f.edge(3, 3, 3)
	assert.Equal(t, accel.DataBuffer{3, 3, 3}, f.adapter.Process())
	assert.Equal(t, Stats{Samples: 1, Dropped: 2}, f.adapter.Stats())
}

func TestScenario(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())

	require.True(t, f.edge(100, -50, 4000))
	assert.Equal(t, 1, f.calls)

	buf := f.adapter.Process()
	require.Len(t, buf, 3)
	assert.Equal(t, int16(100), buf.Int16(0))
	assert.Equal(t, int16(-50), buf.Int16(1))
	assert.Equal(t, int16(4000), buf.Int16(2))

	f.adapter.Stop()
	assert.False(t, f.edge(1, 2, 3))
	assert.Equal(t, 1, f.calls)
}

func TestRestartAfterRateChange(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	f.adapter.Stop()
	f.adapter.Set(accel.KeyRate, uint32(kx13x.ODR50Hz))
	require.NoError(t, f.adapter.Init())
	require.NoError(t, f.adapter.Start())
	assert.Equal(t, kx13x.ODR50Hz, f.drv.Rate())
	assert.True(t, f.edge(1, 2, 3))
	assert.Equal(t, accel.DataBuffer{1, 2, 3}, f.adapter.Process())
}

// pacedLine records the edge rate the adapter announces.
type pacedLine struct {
	*irq.SimLine
	rate physic.Frequency
}

func (l *pacedLine) SetEdgeRate(f physic.Frequency) { l.rate = f }

func TestStartAnnouncesProgrammedRate(t *testing.T) {
	drv := sim.NewDriver()
	line := &pacedLine{SimLine: irq.NewSimLine(irq.DefaultPin)}
	a := New(drv, line, nil)
	a.Set(accel.KeyRate, uint32(kx13x.ODR400Hz))
	require.NoError(t, a.Init())
	// Stored but not programmed yet.
	a.Set(accel.KeyRate, uint32(kx13x.ODR50Hz))
	require.NoError(t, a.Start())
	assert.Equal(t, 400*physic.Hertz, line.rate)
	a.Stop()

	require.NoError(t, a.Init())
	require.NoError(t, a.Start())
	assert.Equal(t, 50*physic.Hertz, line.rate)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninit", Uninit.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "sampling", Sampling.String())
}
