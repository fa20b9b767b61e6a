// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/motion_gestures/internal/detector"
	"github.com/relabs-tech/motion_gestures/internal/imu"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

const (
	// MockBurstDuration is how long each synthetic gesture lasts.
	MockBurstDuration = 800 * time.Millisecond
	// MockBurstPeak is the peak acceleration of a burst in m/s².
	MockBurstPeak = 12.0
	// mockJitter is the amplitude of the idle wobble between bursts.
	mockJitter = 0.3
)

// MockSource generates smooth idle motion with a gesture burst at the start
// of every burst interval. Useful on a dev machine without an IMU.
type MockSource struct {
	every   time.Duration
	gesture detector.Gesture
	clock   timeutil.Clock

	w worker
}

// NewMockSource returns a source that performs g once every burstEvery.
func NewMockSource(burstEvery time.Duration, g detector.Gesture, clock timeutil.Clock) (*MockSource, error) {
	if burstEvery < MockBurstDuration {
		return nil, fmt.Errorf("mock source: burst interval %s shorter than burst duration %s", burstEvery, MockBurstDuration)
	}
	if !g.Valid() {
		return nil, fmt.Errorf("mock source: invalid gesture %v", g)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &MockSource{every: burstEvery, gesture: g, clock: clock}, nil
}

// Subscribe starts a ticker goroutine calling fn every period.
func (m *MockSource) Subscribe(period time.Duration, fn func(imu.Sample)) error {
	if period <= 0 {
		return fmt.Errorf("mock source: invalid period %s", period)
	}
	start := m.clock.Now()
	return m.w.start(func(ctx context.Context) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(MockSampleAt(m.clock.Since(start), m.every, m.gesture))
			}
		}
	})
}

// Unsubscribe stops the ticker goroutine and waits for it to exit.
func (m *MockSource) Unsubscribe() {
	m.w.stop()
}

// MockSampleAt is the synthetic reading elapsed into the stream.
func MockSampleAt(elapsed, burstEvery time.Duration, g detector.Gesture) imu.Sample {
	t := elapsed.Seconds()
	s := imu.Sample{
		X: mockJitter * math.Sin(t),
		Y: mockJitter * math.Cos(t*0.7),
		Z: mockJitter * math.Sin(t*1.3),
	}

	phase := elapsed % burstEvery
	if phase >= MockBurstDuration {
		return s
	}

	u := float64(phase) / float64(MockBurstDuration) // 0..1 through the burst
	pulse := MockBurstPeak * math.Sin(math.Pi*u)
	switch g {
	case detector.GestureForward:
		s.X += pulse
	case detector.GestureLeft:
		s.Y -= pulse
	case detector.GestureRight:
		s.Y += pulse
	case detector.GestureAround:
		s.X += MockBurstPeak * math.Cos(2*math.Pi*u) * math.Sin(math.Pi*u)
		s.Y += MockBurstPeak * math.Sin(2*math.Pi*u) * math.Sin(math.Pi*u)
	}
	return s
}
