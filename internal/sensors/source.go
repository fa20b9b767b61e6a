// Package sensors provides the linear acceleration sources the gesture
// detector subscribes to: a synthetic mock, the MPU9250 on SPI, a serial
// microcontroller stream and the rig's MQTT IMU topic.
//
// Every source implements detector.SampleSource. Unsubscribe is synchronous:
// once it returns, no further sample callback starts.
package sensors

import (
	"context"
	"errors"
	"sync"

	"github.com/relabs-tech/motion_gestures/internal/imu"
)

// ErrAlreadySubscribed is returned by Subscribe while a subscription is active.
var ErrAlreadySubscribed = errors.New("sensors: already subscribed")

// worker runs one delivery goroutine per subscription.
type worker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// start runs fn in a new goroutine until stop is called.
func (w *worker) start(fn func(ctx context.Context)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrAlreadySubscribed
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	w.cancel = cancel
	w.done = done
	return nil
}

// stop cancels the goroutine and waits for it to return. It is a no-op when
// nothing runs.
func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil
}

// active reports whether a goroutine is running.
func (w *worker) active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// sink is a sample callback that can be swapped out atomically with respect
// to in-flight deliveries.
type sink struct {
	mu sync.Mutex
	fn func(imu.Sample)
}

func (s *sink) set(fn func(imu.Sample)) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

// deliver calls the current callback, if any, while holding the lock so
// that set(nil) waits for a delivery in progress.
func (s *sink) deliver(sample imu.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn == nil {
		return false
	}
	s.fn(sample)
	return true
}
