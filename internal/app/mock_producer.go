package app

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/config"
	"github.com/relabs-tech/motion_gestures/internal/detector"
	"github.com/relabs-tech/motion_gestures/internal/imu"
	"github.com/relabs-tech/motion_gestures/internal/sensors"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

// mockIMUReading turns a synthetic linear acceleration into the raw reading
// an upright IMU would report, gravity included.
func mockIMUReading(s imu.Sample, accelRange byte) imu.IMURaw {
	s.Z += imu.StandardGravity
	return imu.IMURawFromMS2(s, accelRange, "mock")
}

// RunMockProducer publishes synthetic raw IMU readings on the IMU topic so
// the mqtt sample source can be exercised without hardware.
func RunMockProducer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	g, err := detector.ParseGesture(cfg.MockBurstGesture)
	if err != nil {
		return err
	}
	src, err := sensors.NewMockSource(cfg.MockBurstInterval, g, timeutil.RealClock{})
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = src.Subscribe(cfg.IMUSampleInterval, func(s imu.Sample) {
		payload, err := json.Marshal(mockIMUReading(s, cfg.IMUAccelRange))
		if err != nil {
			logger.Warn("mock producer: marshal error", zap.Error(err))
			return
		}
		client.Publish(cfg.TopicIMU, 0, false, payload)
	})
	if err != nil {
		return err
	}
	logger.Info("mock producer: publishing",
		zap.String("topic", cfg.TopicIMU),
		zap.Stringer("gesture", g),
		zap.Duration("burstEvery", cfg.MockBurstInterval),
	)

	<-ctx.Done()
	src.Unsubscribe()
	logger.Info("mock producer: shutting down")
	return nil
}
