package app

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/config"
	"github.com/relabs-tech/motion_gestures/internal/sensors"
)

// RunInertialProducer polls the IMU every IMU_SAMPLE_INTERVAL and publishes
// raw readings on the IMU topic, where the mqtt sample source picks them up.
func RunInertialProducer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("imu producer: starting", zap.Duration("interval", cfg.IMUSampleInterval))

	src := sensors.NewIMUSource(sensors.IMUConfig{
		Name:       "left",
		SPIDevice:  cfg.IMUSPIDevice,
		CSPin:      cfg.IMUCSPin,
		AccelRange: cfg.IMUAccelRange,
	}, logger)
	if _, err := src.ReadRaw(); err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ticker := time.NewTicker(cfg.IMUSampleInterval)
	defer ticker.Stop()

	var published, failed int
	for {
		select {
		case <-ctx.Done():
			logger.Info("imu producer: shutting down", zap.Int("published", published), zap.Int("failed", failed))
			return nil
		case <-ticker.C:
		}

		raw, err := src.ReadRaw()
		if err != nil {
			failed++
			logger.Warn("imu producer: read error", zap.Error(err))
			continue
		}
		payload, err := json.Marshal(raw)
		if err != nil {
			failed++
			logger.Warn("imu producer: marshal error", zap.Error(err))
			continue
		}
		// QoS 0, not awaited
		client.Publish(cfg.TopicIMU, 0, false, payload)
		published++
	}
}
