package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/imu"
)

// SerialConfig describes the serial link to an IMU microcontroller that
// streams linear acceleration as "ax,ay,az\n" lines in m/s².
type SerialConfig struct {
	PortName string
	BaudRate uint
}

// SerialSource reads samples from a serial port. The device sets the pace;
// the requested period is only logged.
type SerialSource struct {
	cfg    SerialConfig
	logger *zap.Logger

	// open is replaced in tests.
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)

	w worker
}

// NewSerialSource returns a source for the port in cfg.
func NewSerialSource(cfg SerialConfig, logger *zap.Logger) *SerialSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerialSource{cfg: cfg, logger: logger, open: serial.Open}
}

// Subscribe opens the port and starts the reader goroutine.
func (s *SerialSource) Subscribe(period time.Duration, fn func(imu.Sample)) error {
	if s.w.active() {
		return ErrAlreadySubscribed
	}

	port, err := s.open(serial.OpenOptions{
		PortName:              s.cfg.PortName,
		BaudRate:              s.cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("serial source: open %s: %w", s.cfg.PortName, err)
	}
	s.logger.Info("serial source: port opened",
		zap.String("port", s.cfg.PortName),
		zap.Uint("baud", s.cfg.BaudRate),
		zap.Duration("requestedPeriod", period),
	)

	err = s.w.start(func(ctx context.Context) {
		// closing the port unblocks the scanner
		stopped := make(chan struct{})
		defer close(stopped)
		go func() {
			select {
			case <-ctx.Done():
			case <-stopped:
			}
			port.Close()
		}()

		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			sample, err := ParseCSVSample(line)
			if err != nil {
				s.logger.Debug("serial source: skipping line", zap.String("line", line), zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return
			}
			fn(sample)
		}
		if ctx.Err() == nil {
			s.logger.Warn("serial source: stream ended", zap.String("port", s.cfg.PortName), zap.Error(scanner.Err()))
		}
	})
	if err != nil {
		port.Close()
	}
	return err
}

// Unsubscribe closes the port and waits for the reader to exit.
func (s *SerialSource) Unsubscribe() {
	s.w.stop()
}

// ParseCSVSample parses "ax,ay,az".
func ParseCSVSample(line string) (imu.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return imu.Sample{}, fmt.Errorf("want 3 comma separated values, got %d", len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return imu.Sample{}, fmt.Errorf("field %d: %w", i, err)
		}
		v[i] = x
	}
	return imu.Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}
