package imu

// Sample is one 3-axis linear acceleration reading in m/s².
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale returns the sample with every axis divided by coef.
func (s Sample) Scale(coef float64) Sample {
	return Sample{X: s.X / coef, Y: s.Y / coef, Z: s.Z / coef}
}

// GravityFilter turns total acceleration into linear acceleration by
// tracking gravity with a first-order low-pass filter and subtracting it.
//
//	gravity = alpha*gravity + (1-alpha)*accel
//	linear  = accel - gravity
//
// The first sample seeds the gravity estimate, so it yields a zero reading.
type GravityFilter struct {
	alpha   float64
	gravity Sample
	primed  bool
}

// NewGravityFilter returns a filter with smoothing factor alpha in [0, 1).
// Values closer to 1 track gravity more slowly.
func NewGravityFilter(alpha float64) *GravityFilter {
	if alpha < 0 {
		alpha = 0
	}
	if alpha >= 1 {
		alpha = 0.99
	}
	return &GravityFilter{alpha: alpha}
}

// Update feeds one total-acceleration sample and returns linear acceleration.
func (f *GravityFilter) Update(accel Sample) Sample {
	if !f.primed {
		f.gravity = accel
		f.primed = true
		return Sample{}
	}
	a := f.alpha
	f.gravity.X = a*f.gravity.X + (1-a)*accel.X
	f.gravity.Y = a*f.gravity.Y + (1-a)*accel.Y
	f.gravity.Z = a*f.gravity.Z + (1-a)*accel.Z

	return Sample{
		X: accel.X - f.gravity.X,
		Y: accel.Y - f.gravity.Y,
		Z: accel.Z - f.gravity.Z,
	}
}

// Reset forgets the gravity estimate.
func (f *GravityFilter) Reset() {
	f.gravity = Sample{}
	f.primed = false
}
