package app

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/classifier"
	"github.com/relabs-tech/motion_gestures/internal/config"
	"github.com/relabs-tech/motion_gestures/internal/detector"
	"github.com/relabs-tech/motion_gestures/internal/sensors"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

// NewSampleSource builds the source selected by SENSOR_SOURCE. client is
// only used by the mqtt source.
func NewSampleSource(cfg *config.Config, client mqtt.Client, logger *zap.Logger) (detector.SampleSource, error) {
	switch cfg.SensorSource {
	case config.SourceMock:
		g, err := detector.ParseGesture(cfg.MockBurstGesture)
		if err != nil {
			return nil, fmt.Errorf("MOCK_BURST_GESTURE: %w", err)
		}
		src, err := sensors.NewMockSource(cfg.MockBurstInterval, g, timeutil.RealClock{})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceIMU:
		return sensors.NewIMUSource(sensors.IMUConfig{
			Name:         "left",
			SPIDevice:    cfg.IMUSPIDevice,
			CSPin:        cfg.IMUCSPin,
			AccelRange:   cfg.IMUAccelRange,
			GravityAlpha: cfg.GravityAlpha,
		}, logger), nil
	case config.SourceSerial:
		return sensors.NewSerialSource(sensors.SerialConfig{
			PortName: cfg.SerialPort,
			BaudRate: uint(cfg.SerialBaudRate),
		}, logger), nil
	case config.SourceMQTT:
		if client == nil {
			return nil, fmt.Errorf("mqtt sample source needs a connected client")
		}
		return sensors.NewMQTTSource(client, sensors.MQTTConfig{
			Topic:        cfg.TopicIMU,
			AccelRange:   cfg.IMUAccelRange,
			GravityAlpha: cfg.GravityAlpha,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown sensor source %q", cfg.SensorSource)
	}
}

// DetectorOptions maps the detector settings of cfg to detector options.
func DetectorOptions(cfg *config.Config, logger *zap.Logger) []detector.Option {
	return []detector.Option{
		detector.WithLogger(logger),
		detector.WithWindowSize(cfg.WindowSize),
		detector.WithSamplePeriod(cfg.SamplePeriod()),
		detector.WithFilterCoef(cfg.FilterCoef),
		detector.WithNormalization(cfg.Normalization),
		detector.WithQueueSize(cfg.EventQueueSize),
		detector.WithThresholds(detector.Thresholds{
			Rise:       cfg.RiseThreshold,
			Fall:       cfg.FallThreshold,
			MinSustain: cfg.MinSustain,
			Cooldown:   cfg.Cooldown,
		}),
	}
}

// logListener logs every confirmed gesture.
func logListener(logger *zap.Logger) detector.Listener {
	return detector.ListenerFunc(func(g detector.Gesture, probabilities []float64) {
		logger.Info("gesture", zap.Stringer("gesture", g), zap.Float64s("probabilities", probabilities))
	})
}

// RunGestureDetector runs the detector on the configured source and
// publishes confirmed gestures to MQTT until ctx is done.
func RunGestureDetector(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("gesture detector: starting",
		zap.String("source", cfg.SensorSource),
		zap.String("model", cfg.ClassifierModel),
	)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDetector, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src, err := NewSampleSource(cfg, client, logger)
	if err != nil {
		return err
	}

	pub := NewPublisher(client, cfg.TopicGesture, timeutil.RealClock{}, logger)
	listener := Listeners{logListener(logger), pub}

	det, err := detector.New(src, classifier.NewTemplate(cfg.ClassifierModel), listener, DetectorOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	if err := det.Start(); err != nil {
		return fmt.Errorf("gesture detector: %w", err)
	}
	logger.Info("gesture detector: running", zap.String("topic", cfg.TopicGesture))

	<-ctx.Done()

	logger.Info("gesture detector: shutting down")
	det.Stop()
	return nil
}
