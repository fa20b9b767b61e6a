package detector

import (
	"sync"

	"github.com/relabs-tech/motion_gestures/internal/imu"
)

// Channels is the number of interleaved axis values per sample.
const Channels = 3

// RingBuffer holds the most recent windowSize samples, interleaved as
// x0 y0 z0 x1 y1 z1 ... The cursor always points at the next write
// position, which is also the oldest sample once the buffer has filled.
// Before the first wrap the unwritten slots read as zero.
type RingBuffer struct {
	mu   sync.Mutex
	data []float64
	pos  int
}

// NewRingBuffer returns a zeroed buffer for windowSize samples.
func NewRingBuffer(windowSize int) *RingBuffer {
	return &RingBuffer{data: make([]float64, windowSize*Channels)}
}

// Len returns the number of float values held (windowSize × Channels).
func (r *RingBuffer) Len() int {
	return len(r.data)
}

// Push appends one sample at the cursor and advances it, wrapping to the
// start when the end is reached.
func (r *RingBuffer) Push(s imu.Sample) {
	r.mu.Lock()
	r.data[r.pos] = s.X
	r.data[r.pos+1] = s.Y
	r.data[r.pos+2] = s.Z
	r.pos += Channels
	if r.pos >= len(r.data) {
		r.pos = 0
	}
	r.mu.Unlock()
}

// Reset zeroes the buffer and rewinds the cursor.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	clear(r.data)
	r.pos = 0
	r.mu.Unlock()
}
