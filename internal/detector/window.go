package detector

// Window copies the buffer into dst in chronological order (oldest sample
// first) and returns it. dst is reused when it has enough capacity.
//
// Both segments are copied under the same lock Push takes, so a window
// never mixes data from before and after a cursor advance.
func (r *RingBuffer) Window(dst []float64) []float64 {
	n := len(r.data)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	r.mu.Lock()
	// [pos, end) is the oldest data, [0, pos) the newest.
	older := copy(dst, r.data[r.pos:])
	copy(dst[older:], r.data[:r.pos])
	r.mu.Unlock()

	return dst
}
