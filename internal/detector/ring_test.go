package detector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_gestures/internal/imu"
)

func sampleN(i int) imu.Sample {
	f := float64(i)
	return imu.Sample{X: f, Y: f + 0.25, Z: -f}
}

func flatten(samples ...imu.Sample) []float64 {
	out := make([]float64, 0, len(samples)*Channels)
	for _, s := range samples {
		out = append(out, s.X, s.Y, s.Z)
	}
	return out
}

func TestRingBufferStartsZeroed(t *testing.T) {
	r := NewRingBuffer(4)
	assert.Equal(t, 12, r.Len())
	assert.Equal(t, make([]float64, 12), r.Window(nil))
}

func TestWindowAfterExactlyWindowSizePushes(t *testing.T) {
	for _, size := range []int{1, 2, 5, 128} {
		r := NewRingBuffer(size)
		var pushed []imu.Sample
		for i := 0; i < size; i++ {
			s := sampleN(i + 1)
			pushed = append(pushed, s)
			r.Push(s)
		}
		assert.Equal(t, flatten(pushed...), r.Window(nil), "size %d", size)
	}
}

func TestWindowIsChronologicalAfterWrap(t *testing.T) {
	r := NewRingBuffer(4)
	for i := 1; i <= 6; i++ {
		r.Push(sampleN(i))
	}
	// oldest surviving sample is #3
	assert.Equal(t, flatten(sampleN(3), sampleN(4), sampleN(5), sampleN(6)), r.Window(nil))
}

func TestWindowBeforeFirstFill(t *testing.T) {
	r := NewRingBuffer(3)
	r.Push(sampleN(7))

	want := append(make([]float64, 6), flatten(sampleN(7))...)
	assert.Equal(t, want, r.Window(nil))
}

func TestWindowReusesDestination(t *testing.T) {
	r := NewRingBuffer(2)
	dst := make([]float64, 6, 32)
	got := r.Window(dst)
	assert.Len(t, got, 6)
	assert.Same(t, &dst[0], &got[0])

	small := make([]float64, 1)
	assert.Len(t, r.Window(small), 6)
}

func TestRingBufferReset(t *testing.T) {
	r := NewRingBuffer(3)
	r.Push(sampleN(1))
	r.Push(sampleN(2))
	r.Reset()

	assert.Equal(t, make([]float64, 9), r.Window(nil))

	// cursor rewound: the next push lands at the newest slot after a full fill
	for i := 1; i <= 3; i++ {
		r.Push(sampleN(10 + i))
	}
	assert.Equal(t, flatten(sampleN(11), sampleN(12), sampleN(13)), r.Window(nil))
}

// Every window must be a run of consecutive samples; a torn copy would show
// a gap or a repeat.
func TestWindowNeverTorn(t *testing.T) {
	const size = 16
	r := NewRingBuffer(size)
	for i := 1; i <= size; i++ {
		r.Push(imu.Sample{X: float64(i)})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := size + 1; i <= 20000; i++ {
			r.Push(imu.Sample{X: float64(i)})
		}
	}()

	buf := make([]float64, r.Len())
	for n := 0; n < 2000; n++ {
		buf = r.Window(buf)
		for i := Channels; i < len(buf); i += Channels {
			require.Equal(t, buf[i-Channels]+1, buf[i], "torn window at %d", i)
		}
	}
	wg.Wait()
}
