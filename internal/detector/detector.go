// Package detector recognises motion gestures from a stream of linear
// acceleration samples.
//
// A sample source pushes readings into a ring buffer and wakes the
// recognition loop. Each cycle the loop takes a chronological window of the
// buffer, smooths it, runs the classifier and feeds the probabilities to a
// hysteresis state machine. Confirmed gestures are handed to a dispatcher
// goroutine which calls the listener.
package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/imu"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

const (
	// DefaultWindowSize is the number of samples per classifier window.
	DefaultWindowSize = 128
	// DefaultGestureDuration is the span of motion one window covers.
	DefaultGestureDuration = 1280 * time.Millisecond
	// DefaultFilterCoef is the moving average length, in samples.
	DefaultFilterCoef = 20
	// DefaultNormalization divides raw m/s² readings before buffering.
	DefaultNormalization = 9.0
	// DefaultQueueSize bounds the number of undelivered events.
	DefaultQueueSize = 16
)

// SampleSource delivers linear acceleration samples.
type SampleSource interface {
	// Subscribe starts delivering samples to fn, roughly once per period.
	// fn is called from the source's own goroutine.
	Subscribe(period time.Duration, fn func(imu.Sample)) error
	// Unsubscribe stops delivery. No call to fn starts after it returns.
	Unsubscribe()
}

// Classifier maps a smoothed window to one probability per gesture.
type Classifier interface {
	// Init loads the model. It is called on every Start and must be
	// idempotent.
	Init() error
	// Classify returns NumGestures probabilities for the window. The window
	// is reused after the call returns and must not be retained.
	Classify(window []float64) ([]float64, error)
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the clock used to time gestures.
func WithClock(c timeutil.Clock) Option {
	return func(d *Detector) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithWindowSize sets the number of samples per window.
func WithWindowSize(n int) Option {
	return func(d *Detector) { d.windowSize = n }
}

// WithFilterCoef sets the moving average length.
func WithFilterCoef(n int) Option {
	return func(d *Detector) { d.filterCoef = n }
}

// WithNormalization sets the divisor applied to every axis on ingestion.
func WithNormalization(coef float64) Option {
	return func(d *Detector) { d.normalization = coef }
}

// WithSamplePeriod sets the period requested from the source. By default
// it is DefaultGestureDuration divided by the window size.
func WithSamplePeriod(p time.Duration) Option {
	return func(d *Detector) { d.period = p }
}

// WithThresholds sets the state machine tuning.
func WithThresholds(th Thresholds) Option {
	return func(d *Detector) { d.thresholds = th }
}

// WithQueueSize sets how many confirmed events may wait for the listener.
func WithQueueSize(n int) Option {
	return func(d *Detector) { d.queueSize = n }
}

// Detector wires a sample source, a classifier and a listener together.
// All buffers and gesture state belong to the instance; several detectors
// can run side by side.
type Detector struct {
	source     SampleSource
	classifier Classifier
	listener   Listener
	logger     *zap.Logger
	clock      timeutil.Clock

	windowSize    int
	filterCoef    int
	normalization float64
	period        time.Duration
	thresholds    Thresholds
	queueSize     int

	ring    *RingBuffer
	wake    *wakeSignal
	machine *StateMachine

	// owned by the recognition goroutine
	window   []float64
	filtered []float64

	mu             sync.Mutex
	running        bool
	cancel         context.CancelFunc
	done           chan struct{}
	cancelDispatch context.CancelFunc
	dispatchDone   chan struct{}
}

// New returns a stopped detector.
func New(source SampleSource, classifier Classifier, listener Listener, opts ...Option) (*Detector, error) {
	if source == nil {
		return nil, errors.New("detector: nil sample source")
	}
	if classifier == nil {
		return nil, errors.New("detector: nil classifier")
	}
	if listener == nil {
		return nil, errors.New("detector: nil listener")
	}

	d := &Detector{
		source:        source,
		classifier:    classifier,
		listener:      listener,
		logger:        zap.NewNop(),
		clock:         timeutil.RealClock{},
		windowSize:    DefaultWindowSize,
		filterCoef:    DefaultFilterCoef,
		normalization: DefaultNormalization,
		thresholds:    DefaultThresholds(),
		queueSize:     DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.windowSize < 1 {
		return nil, fmt.Errorf("detector: window size must be >= 1, got %d", d.windowSize)
	}
	if d.filterCoef < 1 {
		return nil, fmt.Errorf("detector: filter coefficient must be >= 1, got %d", d.filterCoef)
	}
	if d.normalization == 0 {
		return nil, errors.New("detector: normalization coefficient must not be zero")
	}
	if d.queueSize < 1 {
		return nil, fmt.Errorf("detector: queue size must be >= 1, got %d", d.queueSize)
	}
	if err := d.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	if d.period <= 0 {
		d.period = DefaultGestureDuration / time.Duration(d.windowSize)
	}

	d.ring = NewRingBuffer(d.windowSize)
	d.wake = newWakeSignal()
	d.machine = NewStateMachine(d.thresholds)
	d.window = make([]float64, d.ring.Len())
	d.filtered = make([]float64, d.ring.Len())
	return d, nil
}

// Start loads the classifier, starts the recognition and dispatch
// goroutines and subscribes to the source. On failure everything started
// so far is torn down and the error wraps ErrClassifierInit or
// ErrSensorUnavailable.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrAlreadyRunning
	}

	if err := d.classifier.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrClassifierInit, err)
	}

	d.resetState()

	disp := newDispatcher(d.listener, d.queueSize, d.logger)
	dispCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		disp.run(dispCtx)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go d.recognize(ctx, disp, done)

	if err := d.source.Subscribe(d.period, d.onSample); err != nil {
		cancel()
		<-done
		cancelDispatch()
		<-dispatchDone
		d.resetState()
		d.logger.Warn("detector: start failed, sensor unavailable", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSensorUnavailable, err)
	}

	d.cancel = cancel
	d.done = done
	d.cancelDispatch = cancelDispatch
	d.dispatchDone = dispatchDone
	d.running = true

	d.logger.Info("detector: started",
		zap.Int("windowSize", d.windowSize),
		zap.Duration("samplePeriod", d.period),
		zap.Int("filterCoef", d.filterCoef),
	)
	return nil
}

// Stop unsubscribes from the source, stops the recognition loop and resets
// the buffer and gesture state. Events already queued are delivered before
// Stop returns. Stopping a stopped detector does nothing.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	d.source.Unsubscribe()
	d.cancel()
	<-d.done
	d.cancelDispatch()
	<-d.dispatchDone
	d.resetState()

	d.cancel = nil
	d.done = nil
	d.cancelDispatch = nil
	d.dispatchDone = nil
	d.running = false

	d.logger.Info("detector: stopped")
}

// IsRunning reports whether Start has succeeded and Stop has not been called.
func (d *Detector) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// resetState must only run while the recognition goroutine is not running.
func (d *Detector) resetState() {
	d.ring.Reset()
	d.wake.drain()
	d.machine.Reset()
}

// onSample runs on the source goroutine.
func (d *Detector) onSample(s imu.Sample) {
	d.ring.Push(s.Scale(d.normalization))
	d.wake.notify()
}

func (d *Detector) recognize(ctx context.Context, disp *dispatcher, done chan<- struct{}) {
	defer close(done)
	for d.wake.wait(ctx) {
		d.cycle(disp)
	}
}

func (d *Detector) cycle(disp *dispatcher) {
	d.window = d.ring.Window(d.window)
	Smooth(d.window, d.filtered, Channels, d.filterCoef)

	probs, err := d.classify()
	if err != nil {
		d.logger.Warn("detector: recognition cycle skipped", zap.Error(err))
		return
	}

	ev, ok := d.machine.Update(probs, d.clock.Now())
	if !ok {
		return
	}

	d.logger.Info("detector: gesture recognized",
		zap.Stringer("gesture", ev.Gesture),
		zap.Float64s("probabilities", ev.Probabilities),
	)
	if !disp.dispatch(ev) {
		d.logger.Warn("detector: event queue full, gesture dropped", zap.Stringer("gesture", ev.Gesture))
	}
}

func (d *Detector) classify() (probs []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrClassifierInvocation, r)
		}
	}()

	probs, err = d.classifier.Classify(d.filtered)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassifierInvocation, err)
	}
	if len(probs) != NumGestures {
		return nil, fmt.Errorf("%w: got %d probabilities, want %d", ErrClassifierInvocation, len(probs), NumGestures)
	}
	return probs, nil
}
