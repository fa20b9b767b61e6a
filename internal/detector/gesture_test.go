package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgmaxFirstMaxWins(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  Gesture
		max   float64
	}{
		{"single leader", []float64{0.1, 0.7, 0.1, 0.1}, GestureLeft, 0.7},
		{"last", []float64{0.1, 0.1, 0.1, 0.7}, GestureAround, 0.7},
		{"tie between all", []float64{0.25, 0.25, 0.25, 0.25}, GestureForward, 0.25},
		{"tie right and around", []float64{0.0, 0.1, 0.45, 0.45}, GestureRight, 0.45},
		{"tie forward and around", []float64{0.5, 0.0, 0.0, 0.5}, GestureForward, 0.5},
		{"all zero", []float64{0, 0, 0, 0}, GestureForward, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, max := Argmax(tt.probs)
			assert.Equal(t, tt.want, g)
			assert.Equal(t, tt.max, max)
		})
	}
}

func TestGestureNames(t *testing.T) {
	for g := GestureForward; g <= GestureAround; g++ {
		require.True(t, g.Valid())
		parsed, err := ParseGesture(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
	}

	g, err := ParseGesture("  Around ")
	require.NoError(t, err)
	assert.Equal(t, GestureAround, g)

	_, err = ParseGesture("backflip")
	assert.Error(t, err)

	assert.False(t, Gesture(4).Valid())
	assert.Equal(t, "gesture(7)", Gesture(7).String())
}
