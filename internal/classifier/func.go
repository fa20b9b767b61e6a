package classifier

import "errors"

// Func adapts a plain function to detector.Classifier. Init always succeeds.
type Func func(window []float64) ([]float64, error)

// Init does nothing.
func (f Func) Init() error {
	if f == nil {
		return errors.New("classifier: nil func")
	}
	return nil
}

// Classify calls f(window).
func (f Func) Classify(window []float64) ([]float64, error) {
	return f(window)
}
