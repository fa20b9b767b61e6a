// Package classifier provides gesture classifiers for the detector.
//
// Template is a nearest-prototype classifier: each window is reduced to a
// small feature vector (per-axis mean and standard deviation) and compared
// with labelled prototypes loaded from a YAML model file. The distances are
// turned into one probability per gesture with a softmax.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/motion_gestures/internal/detector"
)

// FeatureLen is the length of a feature vector: mean then standard deviation
// for each of the detector.Channels axes.
const FeatureLen = 2 * detector.Channels

// DefaultTemperature is used when the model file does not set one.
const DefaultTemperature = 0.1

// RestLabel marks prototypes of "no gesture" motion. They take part in the
// softmax but their probability is not reported.
const RestLabel = "rest"

const restGesture detector.Gesture = -1

// Prototype is one labelled example in feature space.
type Prototype struct {
	Gesture  string    `yaml:"gesture"`
	Features []float64 `yaml:"features"`
}

// Model is the on-disk layout of a template model.
type Model struct {
	// Temperature scales distances before the softmax. Lower values give
	// sharper probabilities.
	Temperature float64     `yaml:"temperature"`
	Prototypes  []Prototype `yaml:"prototypes"`
}

type prototype struct {
	gesture  detector.Gesture
	features []float64
}

// Template implements detector.Classifier.
type Template struct {
	path string

	mu          sync.RWMutex
	loaded      bool
	temperature float64
	prototypes  []prototype
}

// NewTemplate returns a classifier that loads its model from path on Init.
func NewTemplate(path string) *Template {
	return &Template{path: path}
}

// NewTemplateFromModel returns an initialised classifier for an in-memory
// model.
func NewTemplateFromModel(m Model) (*Template, error) {
	t := &Template{}
	if err := t.load(m); err != nil {
		return nil, err
	}
	return t, nil
}

// Init reads and validates the model file. Calling it again on a loaded
// classifier does nothing.
func (t *Template) Init() error {
	t.mu.RLock()
	loaded := t.loaded
	t.mu.RUnlock()
	if loaded {
		return nil
	}

	if t.path == "" {
		return errors.New("template: no model path")
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("template: read model: %w", err)
	}

	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("template: parse model %s: %w", t.path, err)
	}
	return t.load(m)
}

func (t *Template) load(m Model) error {
	if len(m.Prototypes) == 0 {
		return errors.New("template: model has no prototypes")
	}
	if m.Temperature < 0 {
		return fmt.Errorf("template: temperature must be positive, got %v", m.Temperature)
	}
	temp := m.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}

	protos := make([]prototype, 0, len(m.Prototypes))
	for i, p := range m.Prototypes {
		g := restGesture
		if !strings.EqualFold(strings.TrimSpace(p.Gesture), RestLabel) {
			var err error
			if g, err = detector.ParseGesture(p.Gesture); err != nil {
				return fmt.Errorf("template: prototype %d: %w", i, err)
			}
		}
		if len(p.Features) != FeatureLen {
			return fmt.Errorf("template: prototype %d (%s): got %d features, want %d", i, g, len(p.Features), FeatureLen)
		}
		protos = append(protos, prototype{gesture: g, features: append([]float64(nil), p.Features...)})
	}

	t.mu.Lock()
	t.temperature = temp
	t.prototypes = protos
	t.loaded = true
	t.mu.Unlock()
	return nil
}

// Classify returns detector.NumGestures probabilities. They sum to one
// minus the weight of the rest prototypes. Gestures without a prototype
// always get zero.
func (t *Template) Classify(window []float64) ([]float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded {
		return nil, errors.New("template: classifier not initialised")
	}
	feat, err := Features(window)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(t.prototypes))
	for i, p := range t.prototypes {
		scores[i] = -floats.Distance(feat, p.features, 2) / t.temperature
	}
	softmax(scores)

	probs := make([]float64, detector.NumGestures)
	for i, p := range t.prototypes {
		if p.gesture != restGesture {
			probs[p.gesture] += scores[i]
		}
	}
	return probs, nil
}

// Features reduces an interleaved window to per-axis mean and standard
// deviation: [meanX meanY meanZ stdX stdY stdZ].
func Features(window []float64) ([]float64, error) {
	n := len(window) / detector.Channels
	if n == 0 || len(window)%detector.Channels != 0 {
		return nil, fmt.Errorf("template: window length %d is not a positive multiple of %d", len(window), detector.Channels)
	}

	feat := make([]float64, FeatureLen)
	axis := make([]float64, n)
	for c := 0; c < detector.Channels; c++ {
		for i := range axis {
			axis[i] = window[i*detector.Channels+c]
		}
		mean, std := stat.MeanStdDev(axis, nil)
		if n == 1 {
			std = 0
		}
		feat[c] = mean
		feat[detector.Channels+c] = std
	}
	return feat, nil
}

// softmax replaces x with its softmax in place.
func softmax(x []float64) {
	shift := floats.Max(x)
	for i := range x {
		x[i] = math.Exp(x[i] - shift)
	}
	floats.Scale(1/floats.Sum(x), x)
}
