package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/motion_gestures/internal/detector"
)

// GestureEvent is the JSON envelope published on the gesture topic.
type GestureEvent struct {
	ID            string    `json:"id"`
	Gesture       string    `json:"gesture"`
	Index         int       `json:"index"`
	Probabilities []float64 `json:"probabilities"`
	Time          time.Time `json:"time"`
}

// NewGestureEvent wraps a confirmed gesture with a fresh ID.
func NewGestureEvent(g detector.Gesture, probabilities []float64, at time.Time) GestureEvent {
	return GestureEvent{
		ID:            uuid.NewString(),
		Gesture:       g.String(),
		Index:         int(g),
		Probabilities: append([]float64(nil), probabilities...),
		Time:          at.UTC(),
	}
}

// Confidence is the probability of the reported gesture.
func (e GestureEvent) Confidence() float64 {
	if e.Index < 0 || e.Index >= len(e.Probabilities) {
		return 0
	}
	return e.Probabilities[e.Index]
}

// Validate checks an envelope received from the bus.
func (e GestureEvent) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("gesture event: bad id %q: %w", e.ID, err)
	}
	g, err := detector.ParseGesture(e.Gesture)
	if err != nil {
		return fmt.Errorf("gesture event: %w", err)
	}
	if int(g) != e.Index {
		return fmt.Errorf("gesture event: index %d does not match gesture %s", e.Index, e.Gesture)
	}
	if len(e.Probabilities) != detector.NumGestures {
		return fmt.Errorf("gesture event: got %d probabilities, want %d", len(e.Probabilities), detector.NumGestures)
	}
	return nil
}
