package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/accelmon/irq"
	"lautenbacher.net/accelmon/kx13x"
)

func startedDriver(t *testing.T) *Driver {
	d := NewDriver()
	require.NoError(t, d.Begin())
	require.NoError(t, d.SetOutputDataRate(kx13x.ODR200Hz))
	require.NoError(t, d.EnableDataReady(true))
	require.NoError(t, d.EnableAccel(true))
	return d
}

func TestDriverRequiresBegin(t *testing.T) {
	d := NewDriver()
	assert.ErrorIs(t, d.EnableAccel(true), ErrNoDevice)
	require.NoError(t, d.Begin())
	assert.NoError(t, d.EnableAccel(true))
}

func TestDriverAbsent(t *testing.T) {
	d := NewDriver()
	d.SetAbsent(true)
	assert.ErrorIs(t, d.Begin(), ErrNoDevice)
	d.SetAbsent(false)
	assert.NoError(t, d.Begin())
}

func TestDriverLatch(t *testing.T) {
	d := startedDriver(t)
	assert.True(t, d.Running())
	assert.Equal(t, kx13x.ODR200Hz, d.Rate())

	d.Latch(1, -2, 3)
	var raw kx13x.RawOutputData
	require.NoError(t, d.RawAccelData(&raw))
	assert.Equal(t, kx13x.RawOutputData{X: 1, Y: -2, Z: 3}, raw)
	assert.Equal(t, 1, d.Reads())

	d.SetFailReads(true)
	assert.Error(t, d.RawAccelData(&raw))
	assert.Equal(t, 1, d.Reads())
}

func TestGeneratorTriggersLine(t *testing.T) {
	d := startedDriver(t)
	line := irq.NewSimLine(irq.DefaultPin)
	edges := make(chan struct{}, 100)
	require.NoError(t, line.Arm(irq.RisingEdge, func() {
		select {
		case edges <- struct{}{}:
		default:
		}
	}))

	g := NewGenerator(d, line, 1000, 10)
	g.Start()
	defer g.Stop()

	select {
	case <-edges:
	case <-time.After(time.Second):
		t.Fatal("generator produced no edge")
	}
	var raw kx13x.RawOutputData
	require.NoError(t, d.RawAccelData(&raw))
	assert.InDelta(t, 4096, int(raw.Z), 10)
}

func TestGeneratorIdleWhileSensorStopped(t *testing.T) {
	d := NewDriver()
	line := irq.NewSimLine(irq.DefaultPin)
	fired := make(chan struct{}, 1)
	require.NoError(t, line.Arm(irq.RisingEdge, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}))
	g := NewGenerator(d, line, 0, 0)
	g.Start()
	time.Sleep(50 * time.Millisecond)
	g.Stop()
	g.Stop()
	assert.Len(t, fired, 0)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int16(32767), clamp(1e6))
	assert.Equal(t, int16(-32768), clamp(-1e6))
	assert.Equal(t, int16(12), clamp(11.6))
}
