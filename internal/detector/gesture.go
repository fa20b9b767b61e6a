package detector

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Gesture is one of the fixed set of motions the classifier knows about.
// The numeric value is the index of the gesture in the classifier output.
type Gesture int

const (
	GestureForward Gesture = iota
	GestureLeft
	GestureRight
	GestureAround

	// NumGestures is the length of every probability vector.
	NumGestures = 4
)

var gestureNames = [NumGestures]string{"forward", "left", "right", "around"}

func (g Gesture) String() string {
	if g < 0 || int(g) >= NumGestures {
		return fmt.Sprintf("gesture(%d)", int(g))
	}
	return gestureNames[g]
}

// Valid reports whether g is a member of the label set.
func (g Gesture) Valid() bool {
	return g >= 0 && int(g) < NumGestures
}

// ParseGesture maps a label name ("forward", "Left", ...) to its Gesture.
func ParseGesture(name string) (Gesture, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range gestureNames {
		if s == n {
			return Gesture(i), nil
		}
	}
	return 0, fmt.Errorf("unknown gesture %q", name)
}

// Argmax returns the gesture with the highest probability and that
// probability. Ties go to the lowest index: a later equal maximum never
// overrides an earlier one. probs must not be empty.
func Argmax(probs []float64) (Gesture, float64) {
	i := floats.MaxIdx(probs)
	return Gesture(i), probs[i]
}
