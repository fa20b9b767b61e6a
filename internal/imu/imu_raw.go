package imu

import "math"

// IMURaw represents a single raw IMU+mag sample as published by the
// inertial producer.
type IMURaw struct {
	Source string `json:"source"` // "left" or "right"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer
	My int16 `json:"my"`
	Mz int16 `json:"mz"`
}

// StandardGravity in m/s².
const StandardGravity = 9.80665

// accelLSBPerG is the MPU9250 sensitivity for each ACCEL_FS_SEL setting
// (0=±2g, 1=±4g, 2=±8g, 3=±16g).
var accelLSBPerG = [4]float64{16384, 8192, 4096, 2048}

// AccelMS2 converts raw accelerometer counts to m/s² for the given range
// setting. Out of range settings fall back to ±2g.
func (r IMURaw) AccelMS2(accelRange byte) Sample {
	lsb := accelLSBPerG[0]
	if int(accelRange) < len(accelLSBPerG) {
		lsb = accelLSBPerG[accelRange]
	}
	scale := StandardGravity / lsb
	return Sample{
		X: float64(r.Ax) * scale,
		Y: float64(r.Ay) * scale,
		Z: float64(r.Az) * scale,
	}
}

// IMURawFromMS2 converts an acceleration in m/s² back to raw counts for the
// given range setting, saturating at the int16 limits.
func IMURawFromMS2(s Sample, accelRange byte, source string) IMURaw {
	lsb := accelLSBPerG[0]
	if int(accelRange) < len(accelLSBPerG) {
		lsb = accelLSBPerG[accelRange]
	}
	scale := lsb / StandardGravity
	return IMURaw{
		Source: source,
		Ax:     saturate(s.X * scale),
		Ay:     saturate(s.Y * scale),
		Az:     saturate(s.Z * scale),
	}
}

func saturate(v float64) int16 {
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}
