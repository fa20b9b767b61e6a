package detector

import (
	"errors"
	"fmt"
	"time"
)

// Thresholds tune the hysteresis and debounce of the StateMachine.
type Thresholds struct {
	// Rise is the probability a gesture must reach to arm detection.
	Rise float64
	// Fall is the probability below which an armed gesture is abandoned.
	Fall float64
	// MinSustain is how long the armed gesture must hold before it is
	// confirmed.
	MinSustain time.Duration
	// Cooldown is the minimum gap between a confirmation and the next arming.
	Cooldown time.Duration
}

// DefaultThresholds returns the tuning used with the stock model.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Rise:       0.95,
		Fall:       0.90,
		MinSustain: 400 * time.Millisecond,
		Cooldown:   2 * time.Second,
	}
}

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.Rise <= 0 {
		return fmt.Errorf("rise threshold must be > 0, got %v", t.Rise)
	}
	if t.Fall > t.Rise {
		return fmt.Errorf("fall threshold %v is above rise threshold %v", t.Fall, t.Rise)
	}
	if t.MinSustain < 0 {
		return errors.New("min sustain duration must not be negative")
	}
	if t.Cooldown < 0 {
		return errors.New("cooldown duration must not be negative")
	}
	return nil
}

// Event is a confirmed gesture.
type Event struct {
	Gesture Gesture
	// Probabilities is a copy of the vector that confirmed the gesture.
	Probabilities []float64
	// At is the clock reading of the confirming cycle.
	At time.Time
}

// StateMachine turns a stream of probability vectors into debounced
// gesture events. It is not safe for concurrent use; the recognition loop
// owns it.
//
// Not armed, it arms on a vector whose maximum reaches Rise, provided the
// cooldown since the last confirmation has passed. Armed, it abandons the
// gesture when the leading label changes or the maximum drops below Fall,
// and confirms it once it has been held for MinSustain. A confirmation is a
// single event followed by a return to not armed.
type StateMachine struct {
	th Thresholds

	armed     bool
	start     time.Time
	committed Gesture

	confirmed     bool // a gesture has been confirmed since the last Reset
	lastConfirmed time.Time
}

// NewStateMachine returns a not-armed state machine.
func NewStateMachine(th Thresholds) *StateMachine {
	return &StateMachine{th: th}
}

// Armed reports whether a gesture is currently being tracked, and which.
func (m *StateMachine) Armed() (Gesture, bool) {
	return m.committed, m.armed
}

// Update feeds one probability vector observed at now. It returns the
// confirmed event, if this vector completed one.
func (m *StateMachine) Update(probs []float64, now time.Time) (Event, bool) {
	label, highest := Argmax(probs)

	if !m.armed {
		if highest >= m.th.Rise && m.cooledDown(now) {
			m.armed = true
			m.start = now
			m.committed = label
		}
		return Event{}, false
	}

	if label != m.committed || highest < m.th.Fall {
		m.disarm()
		return Event{}, false
	}

	if now.Sub(m.start) < m.th.MinSustain {
		return Event{}, false
	}

	ev := Event{
		Gesture:       m.committed,
		Probabilities: append([]float64(nil), probs...),
		At:            now,
	}
	m.confirmed = true
	m.lastConfirmed = now
	m.disarm()
	return ev, true
}

// Reset returns to the initial state, forgetting any armed gesture and the
// cooldown.
func (m *StateMachine) Reset() {
	m.disarm()
	m.confirmed = false
	m.lastConfirmed = time.Time{}
}

func (m *StateMachine) cooledDown(now time.Time) bool {
	return !m.confirmed || now.Sub(m.lastConfirmed) > m.th.Cooldown
}

func (m *StateMachine) disarm() {
	m.armed = false
	m.start = time.Time{}
	m.committed = 0
}
