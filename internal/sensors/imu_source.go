// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_gestures/internal/imu"
)

// IMUConfig selects the MPU9250 wiring and conversion.
type IMUConfig struct {
	Name      string // for logging, e.g. "left"
	SPIDevice string
	CSPin     string
	// AccelRange is the ACCEL_FS_SEL setting the device runs at (0=±2g).
	AccelRange byte
	// GravityAlpha is the low-pass factor of the gravity estimate.
	GravityAlpha float64
}

// IMURawReader reads one raw accelerometer sample.
type IMURawReader interface {
	ReadRaw() (imu.IMURaw, error)
}

// IMUSource polls an MPU9250 and delivers linear acceleration.
type IMUSource struct {
	cfg    IMUConfig
	logger *zap.Logger

	// open is replaced in tests.
	open func(IMUConfig) (IMURawReader, error)

	mu     sync.Mutex
	reader IMURawReader
	w      worker
}

// NewIMUSource returns a source for the IMU in cfg. The device is opened on
// the first Subscribe.
func NewIMUSource(cfg IMUConfig, logger *zap.Logger) *IMUSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "imu"
	}
	return &IMUSource{cfg: cfg, logger: logger, open: openMPU9250}
}

// Subscribe opens the device if needed and polls it every period.
func (s *IMUSource) Subscribe(period time.Duration, fn func(imu.Sample)) error {
	if period <= 0 {
		return fmt.Errorf("%s IMU: invalid period %s", s.cfg.Name, period)
	}

	reader, err := s.device()
	if err != nil {
		return err
	}

	gravity := imu.NewGravityFilter(s.cfg.GravityAlpha)
	return s.w.start(func(ctx context.Context) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				raw, err := reader.ReadRaw()
				if err != nil {
					s.logger.Warn("imu source: read failed", zap.String("imu", s.cfg.Name), zap.Error(err))
					continue
				}
				fn(gravity.Update(raw.AccelMS2(s.cfg.AccelRange)))
			}
		}
	})
}

// Unsubscribe stops polling. The device stays open for the next Subscribe.
func (s *IMUSource) Unsubscribe() {
	s.w.stop()
}

// ReadRaw reads one raw sample, opening the device if needed.
func (s *IMUSource) ReadRaw() (imu.IMURaw, error) {
	reader, err := s.device()
	if err != nil {
		return imu.IMURaw{}, err
	}
	return reader.ReadRaw()
}

func (s *IMUSource) device() (IMURawReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return s.reader, nil
	}
	r, err := s.open(s.cfg)
	if err != nil {
		return nil, err
	}
	s.logger.Info("imu source: device ready",
		zap.String("imu", s.cfg.Name),
		zap.String("spi", s.cfg.SPIDevice),
		zap.String("cs", s.cfg.CSPin),
	)
	s.reader = r
	return r, nil
}

type mpuReader struct {
	name string
	dev  *mpu9250.MPU9250
}

// openMPU9250 initializes the MPU9250 over SPI and calibrates it.
func openMPU9250(cfg IMUConfig) (IMURawReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", cfg.Name, err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", cfg.Name, cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", cfg.Name, cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", cfg.Name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", cfg.Name, err)
	}
	if err := dev.Calibrate(); err != nil {
		return nil, fmt.Errorf("%s IMU: calibration: %w", cfg.Name, err)
	}

	return &mpuReader{name: cfg.Name, dev: dev}, nil
}

// ReadRaw reads the accelerometer. Gyro and magnetometer fields stay zero.
func (r *mpuReader) ReadRaw() (imu.IMURaw, error) {
	ax, err := r.dev.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel X: %w", r.name, err)
	}
	ay, err := r.dev.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Y: %w", r.name, err)
	}
	az, err := r.dev.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Z: %w", r.name, err)
	}

	return imu.IMURaw{
		Source: r.name,
		Ax:     ax,
		Ay:     ay,
		Az:     az,
	}, nil
}
