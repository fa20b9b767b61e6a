package sensors

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/imu"
)

// MQTTConfig selects the raw IMU topic published by imu_producer.
type MQTTConfig struct {
	Topic string
	// AccelRange is the ACCEL_FS_SEL setting of the publishing IMU.
	AccelRange   byte
	GravityAlpha float64
}

// MQTTSource turns the rig's raw IMU JSON stream into linear acceleration.
// The producer sets the pace; the requested period is only logged.
type MQTTSource struct {
	client mqtt.Client
	cfg    MQTTConfig
	logger *zap.Logger

	mu         sync.Mutex
	subscribed bool
	out        sink
}

// NewMQTTSource returns a source reading cfg.Topic through a connected client.
func NewMQTTSource(client mqtt.Client, cfg MQTTConfig, logger *zap.Logger) *MQTTSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSource{client: client, cfg: cfg, logger: logger}
}

// Subscribe subscribes to the IMU topic.
func (s *MQTTSource) Subscribe(period time.Duration, fn func(imu.Sample)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return ErrAlreadySubscribed
	}

	gravity := imu.NewGravityFilter(s.cfg.GravityAlpha)
	s.out.set(func(raw imu.Sample) {
		fn(gravity.Update(raw))
	})

	token := s.client.Subscribe(s.cfg.Topic, 0, s.handle)
	token.Wait()
	if err := token.Error(); err != nil {
		s.out.set(nil)
		return fmt.Errorf("mqtt source: subscribe %s: %w", s.cfg.Topic, err)
	}

	s.subscribed = true
	s.logger.Info("mqtt source: subscribed",
		zap.String("topic", s.cfg.Topic),
		zap.Duration("requestedPeriod", period),
	)
	return nil
}

// Unsubscribe drops the topic subscription and waits for a delivery in
// progress to finish.
func (s *MQTTSource) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.subscribed {
		return
	}

	token := s.client.Unsubscribe(s.cfg.Topic)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Warn("mqtt source: unsubscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(err))
	}
	s.out.set(nil)
	s.subscribed = false
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	var raw imu.IMURaw
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.logger.Warn("mqtt source: imu unmarshal error", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	s.out.deliver(raw.AccelMS2(s.cfg.AccelRange))
}
