package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeIDString(t *testing.T) {
	assert.Equal(t, "KX134", TypeKX134.String())
	assert.Equal(t, "ADC", TypeADC.String())
	assert.Equal(t, "Unknown(42)", TypeID(42).String())
}

func TestQueryResponse(t *testing.T) {
	v := Value(7)
	assert.True(t, v.Supported())
	assert.Equal(t, uint32(7), v.Value)
	assert.Equal(t, "7", v.String())

	u := Unsupported()
	assert.False(t, u.Supported())
	assert.Equal(t, "unsupported", u.String())
}

func TestDataBufferInt16(t *testing.T) {
	b := DataBuffer{100, uint16(0xFFCE), 4000}
	assert.Equal(t, int16(100), b.Int16(0))
	assert.Equal(t, int16(-50), b.Int16(1))
	assert.Equal(t, int16(4000), b.Int16(2))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "r", KeyRate.String())
}
