package detector

import (
	"context"

	"go.uber.org/zap"
)

// Listener receives confirmed gestures. OnGesture runs on the dispatcher
// goroutine, never on the recognition loop, and never with detector locks
// held. Panics are recovered and logged.
type Listener interface {
	OnGesture(g Gesture, probabilities []float64)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(g Gesture, probabilities []float64)

// OnGesture calls f(g, probabilities).
func (f ListenerFunc) OnGesture(g Gesture, probabilities []float64) {
	f(g, probabilities)
}

// EventListener is a Listener that also wants the confirmation time.
// Listeners implementing it get OnEvent instead of OnGesture.
type EventListener interface {
	Listener
	OnEvent(ev Event)
}

// Notify hands ev to l, through OnEvent when l implements EventListener.
func Notify(l Listener, ev Event) {
	if el, ok := l.(EventListener); ok {
		el.OnEvent(ev)
		return
	}
	l.OnGesture(ev.Gesture, ev.Probabilities)
}

// dispatcher hands events to the listener from its own goroutine so the
// recognition loop never waits on subscriber code.
type dispatcher struct {
	listener Listener
	queue    chan Event
	logger   *zap.Logger
}

func newDispatcher(l Listener, size int, logger *zap.Logger) *dispatcher {
	return &dispatcher{
		listener: l,
		queue:    make(chan Event, size),
		logger:   logger,
	}
}

// dispatch queues ev without blocking. It reports false when the queue is
// full and the event was dropped.
func (p *dispatcher) dispatch(ev Event) bool {
	select {
	case p.queue <- ev:
		return true
	default:
		return false
	}
}

// run delivers queued events until ctx is done, then flushes whatever is
// still queued and returns.
func (p *dispatcher) run(ctx context.Context) {
	for {
		select {
		case ev := <-p.queue:
			p.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.queue:
					p.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("detector: listener panicked, event discarded",
				zap.Stringer("gesture", ev.Gesture),
				zap.Any("panic", r),
			)
		}
	}()
	Notify(p.listener, ev)
}
