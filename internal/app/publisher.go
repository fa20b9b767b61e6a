package app

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/detector"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

// Publisher is a detector.Listener that publishes every gesture as a
// GestureEvent on an MQTT topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	clock  timeutil.Clock
	logger *zap.Logger
}

// NewPublisher returns a publisher writing to topic through client.
func NewPublisher(client mqtt.Client, topic string, clock timeutil.Clock, logger *zap.Logger) *Publisher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, topic: topic, clock: clock, logger: logger}
}

// OnEvent publishes a confirmed gesture stamped with its confirmation time.
func (p *Publisher) OnEvent(e detector.Event) {
	p.publish(NewGestureEvent(e.Gesture, e.Probabilities, e.At))
}

// OnGesture publishes the gesture stamped with the current time. Failures
// are logged.
func (p *Publisher) OnGesture(g detector.Gesture, probabilities []float64) {
	p.publish(NewGestureEvent(g, probabilities, p.clock.Now()))
}

func (p *Publisher) publish(ev GestureEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("publisher: gesture marshal error", zap.Error(err))
		return
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		p.logger.Warn("publisher: publish timed out", zap.String("topic", p.topic), zap.String("id", ev.ID))
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("publisher: MQTT publish error", zap.String("topic", p.topic), zap.Error(err))
		return
	}
	p.logger.Debug("publisher: gesture published", zap.String("id", ev.ID), zap.String("gesture", ev.Gesture))
}

// Listeners fans a gesture out to several listeners in order. A panicking
// listener does not stop the ones after it; the first panic is raised again
// once every listener has been called.
type Listeners []detector.Listener

// OnGesture calls every listener.
func (ls Listeners) OnGesture(g detector.Gesture, probabilities []float64) {
	ls.each(func(l detector.Listener) { l.OnGesture(g, probabilities) })
}

// OnEvent hands e to every listener, keeping the confirmation time for
// those that want it.
func (ls Listeners) OnEvent(e detector.Event) {
	ls.each(func(l detector.Listener) { detector.Notify(l, e) })
}

func (ls Listeners) each(call func(detector.Listener)) {
	var failed any
	for _, l := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil && failed == nil {
					failed = r
				}
			}()
			call(l)
		}()
	}
	if failed != nil {
		panic(failed)
	}
}
