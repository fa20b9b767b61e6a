package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccelMS2(t *testing.T) {
	raw := IMURaw{Ax: 16384, Ay: -8192, Az: 0}

	s := raw.AccelMS2(0)
	assert.InDelta(t, StandardGravity, s.X, 1e-9)
	assert.InDelta(t, -StandardGravity/2, s.Y, 1e-9)
	assert.Zero(t, s.Z)

	s = raw.AccelMS2(1)
	assert.InDelta(t, 2*StandardGravity, s.X, 1e-9)

	// unknown range falls back to ±2g
	assert.Equal(t, raw.AccelMS2(0), raw.AccelMS2(9))
}

func TestSampleScale(t *testing.T) {
	s := Sample{X: 9, Y: -18, Z: 4.5}.Scale(9)
	assert.Equal(t, Sample{X: 1, Y: -2, Z: 0.5}, s)
}

func TestGravityFilterRemovesConstant(t *testing.T) {
	f := NewGravityFilter(0.8)
	still := Sample{Z: StandardGravity}

	assert.Equal(t, Sample{}, f.Update(still))
	for i := 0; i < 50; i++ {
		lin := f.Update(still)
		assert.InDelta(t, 0, lin.Z, 1e-9)
	}

	// a sudden push along X shows up as linear acceleration
	lin := f.Update(Sample{X: 5, Z: StandardGravity})
	assert.InDelta(t, 5*0.8, lin.X, 1e-9)
	assert.InDelta(t, 0, lin.Z, 1e-9)
}

func TestGravityFilterReset(t *testing.T) {
	f := NewGravityFilter(0.5)
	f.Update(Sample{Z: 10})
	f.Update(Sample{Z: 20})
	f.Reset()
	assert.Equal(t, Sample{}, f.Update(Sample{Z: 3}))
}

func TestIMURawFromMS2(t *testing.T) {
	raw := IMURawFromMS2(Sample{X: StandardGravity, Y: -StandardGravity / 2, Z: 0}, 0, "mock")
	assert.Equal(t, IMURaw{Source: "mock", Ax: 16384, Ay: -8192}, raw)

	// round trip within one count
	s := Sample{X: 3.3, Y: -7.1, Z: 12.0}
	back := IMURawFromMS2(s, 2, "").AccelMS2(2)
	assert.InDelta(t, s.X, back.X, StandardGravity/4096)
	assert.InDelta(t, s.Z, back.Z, StandardGravity/4096)

	// ±2g saturates
	sat := IMURawFromMS2(Sample{X: 5 * StandardGravity, Y: -5 * StandardGravity}, 0, "")
	assert.Equal(t, int16(32767), sat.Ax)
	assert.Equal(t, int16(-32768), sat.Ay)
}
