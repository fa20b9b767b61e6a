// Package config loads the gesture rig configuration.
//
// The file is a plain KEY=VALUE text file (see gesture_config.txt). Every key
// can be overridden from the environment with a GESTURE_ prefix, for example
// GESTURE_MQTT_BROKER=tcp://10.0.0.2:1883.
package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when looking up environment overrides.
const EnvPrefix = "GESTURE"

// Sample sources accepted by SENSOR_SOURCE.
const (
	SourceMock   = "mock"
	SourceIMU    = "imu"
	SourceSerial = "serial"
	SourceMQTT   = "mqtt"
)

// Config holds all application configuration values.
type Config struct {
	// Logging
	LogLevel string
	LogFile  string

	// MQTT
	MQTTBroker           string
	MQTTClientIDDetector string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicIMU     string
	TopicGesture string

	// Sample source: "mock", "imu", "serial" or "mqtt"
	SensorSource string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Low-pass factor of the gravity estimate removed from total acceleration
	GravityAlpha float64

	// Serial IMU
	SerialPort     string
	SerialBaudRate int

	// Producer
	IMUSampleInterval time.Duration

	// Mock source
	MockBurstInterval time.Duration
	MockBurstGesture  string

	// Detector
	WindowSize      int
	GestureDuration time.Duration
	FilterCoef      int
	Normalization   float64
	RiseThreshold   float64
	FallThreshold   float64
	MinSustain      time.Duration
	Cooldown        time.Duration
	EventQueueSize  int

	// Classifier
	ClassifierModel string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus  string
	DisplayI2CAddr uint16
}

// defaults lists every accepted key. A nil value means the key has no
// default and must be set when it is used.
var defaults = map[string]any{
	"LOG_LEVEL": "info",
	"LOG_FILE":  "",

	"MQTT_BROKER":             nil,
	"MQTT_CLIENT_ID_DETECTOR": "gesture-detector",
	"MQTT_CLIENT_ID_PRODUCER": "gesture-imu-producer",
	"MQTT_CLIENT_ID_CONSOLE":  "gesture-console",
	"MQTT_CLIENT_ID_WEB":      "gesture-web",
	"MQTT_CLIENT_ID_DISPLAY":  "gesture-display",

	"TOPIC_IMU":     "inertial/imu/left",
	"TOPIC_GESTURE": "inertial/gesture",

	"SENSOR_SOURCE": SourceMock,

	"IMU_SPI_DEVICE":  "/dev/spidev6.0",
	"IMU_CS_PIN":      "18",
	"IMU_ACCEL_RANGE": 0,
	"GRAVITY_ALPHA":   0.8,

	"SERIAL_PORT":      nil,
	"SERIAL_BAUD_RATE": 115200,

	"IMU_SAMPLE_INTERVAL": "10ms",

	"MOCK_BURST_INTERVAL": "3s",
	"MOCK_BURST_GESTURE":  "forward",

	"WINDOW_SIZE":      128,
	"GESTURE_DURATION": "1280ms",
	"FILTER_COEF":      20,
	"NORMALIZATION":    9.0,
	"RISE_THRESHOLD":   0.95,
	"FALL_THRESHOLD":   0.90,
	"MIN_SUSTAIN":      "400ms",
	"COOLDOWN":         "2s",
	"EVENT_QUEUE_SIZE": 16,

	"CLASSIFIER_MODEL": "./models/templates.yaml",

	"WEB_SERVER_PORT": 8080,

	"DISPLAY_I2C_BUS":  "",
	"DISPLAY_I2C_ADDR": "0x3C",
}

// Package-level singleton guarded by configOnce/configMu.
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file, applies environment overrides and
// defaults, and returns the validated Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Only keys from the file are known at this point.
	var unknown []string
	for _, k := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(k)]; !ok {
			unknown = append(unknown, strings.ToUpper(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(unknown, ", "))
	}

	v.SetEnvPrefix(EnvPrefix)
	for k, def := range defaults {
		if def != nil {
			v.SetDefault(k, def)
		}
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	cfg := &Config{}
	p := parser{v: v}

	cfg.LogLevel = p.str("LOG_LEVEL")
	cfg.LogFile = p.str("LOG_FILE")

	cfg.MQTTBroker = p.str("MQTT_BROKER")
	cfg.MQTTClientIDDetector = p.str("MQTT_CLIENT_ID_DETECTOR")
	cfg.MQTTClientIDProducer = p.str("MQTT_CLIENT_ID_PRODUCER")
	cfg.MQTTClientIDConsole = p.str("MQTT_CLIENT_ID_CONSOLE")
	cfg.MQTTClientIDWeb = p.str("MQTT_CLIENT_ID_WEB")
	cfg.MQTTClientIDDisplay = p.str("MQTT_CLIENT_ID_DISPLAY")

	cfg.TopicIMU = p.str("TOPIC_IMU")
	cfg.TopicGesture = p.str("TOPIC_GESTURE")

	cfg.SensorSource = strings.ToLower(p.str("SENSOR_SOURCE"))

	cfg.IMUSPIDevice = p.str("IMU_SPI_DEVICE")
	cfg.IMUCSPin = p.str("IMU_CS_PIN")
	if r := p.integer("IMU_ACCEL_RANGE"); r < 0 || r > 3 {
		p.fail("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", r)
	} else {
		cfg.IMUAccelRange = byte(r)
	}
	cfg.GravityAlpha = p.float("GRAVITY_ALPHA")

	cfg.SerialPort = p.str("SERIAL_PORT")
	cfg.SerialBaudRate = p.integer("SERIAL_BAUD_RATE")

	cfg.IMUSampleInterval = p.duration("IMU_SAMPLE_INTERVAL")

	cfg.MockBurstInterval = p.duration("MOCK_BURST_INTERVAL")
	cfg.MockBurstGesture = p.str("MOCK_BURST_GESTURE")

	cfg.WindowSize = p.integer("WINDOW_SIZE")
	cfg.GestureDuration = p.duration("GESTURE_DURATION")
	cfg.FilterCoef = p.integer("FILTER_COEF")
	cfg.Normalization = p.float("NORMALIZATION")
	cfg.RiseThreshold = p.float("RISE_THRESHOLD")
	cfg.FallThreshold = p.float("FALL_THRESHOLD")
	cfg.MinSustain = p.duration("MIN_SUSTAIN")
	cfg.Cooldown = p.duration("COOLDOWN")
	cfg.EventQueueSize = p.integer("EVENT_QUEUE_SIZE")

	cfg.ClassifierModel = p.str("CLASSIFIER_MODEL")

	cfg.WebServerPort = p.integer("WEB_SERVER_PORT")

	cfg.DisplayI2CBus = p.str("DISPLAY_I2C_BUS")
	addr, err := cast.ToUint16E(p.str("DISPLAY_I2C_ADDR"))
	if err != nil {
		p.fail("invalid DISPLAY_I2C_ADDR %q: %v", p.str("DISPLAY_I2C_ADDR"), err)
	}
	cfg.DisplayI2CAddr = addr

	if p.err != nil {
		return nil, p.err
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parser keeps the first conversion error so Load can read every key
// without checking after each one.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) integer(key string) int {
	n, err := cast.ToIntE(p.v.Get(key))
	if err != nil {
		p.fail("invalid %s %q: %v", key, p.str(key), err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	f, err := cast.ToFloat64E(p.v.Get(key))
	if err != nil {
		p.fail("invalid %s %q: %v", key, p.str(key), err)
	}
	return f
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.str(key))
	if err != nil {
		p.fail("invalid %s %q: %v", key, p.str(key), err)
	}
	return d
}

// validate checks that required fields are set and values are consistent.
func (c *Config) validate() error {
	switch c.SensorSource {
	case SourceMock:
	case SourceIMU:
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required for SENSOR_SOURCE=%s", SourceIMU)
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SENSOR_SOURCE=%s", SourceSerial)
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
		}
	case SourceMQTT:
		if c.TopicIMU == "" {
			return fmt.Errorf("TOPIC_IMU is required for SENSOR_SOURCE=%s", SourceMQTT)
		}
	default:
		return fmt.Errorf("SENSOR_SOURCE must be one of mock, imu, serial, mqtt, got %q", c.SensorSource)
	}

	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicGesture == "" {
		return fmt.Errorf("TOPIC_GESTURE is required")
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("WINDOW_SIZE must be >= 1, got %d", c.WindowSize)
	}
	if c.FilterCoef < 1 {
		return fmt.Errorf("FILTER_COEF must be >= 1, got %d", c.FilterCoef)
	}
	if c.Normalization == 0 {
		return fmt.Errorf("NORMALIZATION must not be zero")
	}
	if c.GestureDuration <= 0 {
		return fmt.Errorf("GESTURE_DURATION must be positive, got %s", c.GestureDuration)
	}
	if c.FallThreshold > c.RiseThreshold {
		return fmt.Errorf("FALL_THRESHOLD (%v) must not exceed RISE_THRESHOLD (%v)", c.FallThreshold, c.RiseThreshold)
	}
	if c.MinSustain < 0 || c.Cooldown < 0 {
		return fmt.Errorf("MIN_SUSTAIN and COOLDOWN must not be negative")
	}
	if c.GravityAlpha < 0 || c.GravityAlpha >= 1 {
		return fmt.Errorf("GRAVITY_ALPHA must be in [0, 1), got %v", c.GravityAlpha)
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be positive, got %s", c.IMUSampleInterval)
	}
	return nil
}

// SamplePeriod is the sensor period the detector asks for: one window
// spans GestureDuration.
func (c *Config) SamplePeriod() time.Duration {
	return c.GestureDuration / time.Duration(c.WindowSize)
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
