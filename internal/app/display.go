package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_gestures/internal/config"
)

const (
	displayWidth  = 128
	displayHeight = 64
	// displayHold is how long a gesture stays highlighted on screen.
	displayHold = 3 * time.Second
	// displayRefresh is the redraw period.
	displayRefresh = 200 * time.Millisecond
)

// ssd1306DefaultAddr is the only address the ssd1306 driver talks to.
const ssd1306DefaultAddr = 0x3C

// displayBus redirects the driver's transactions to the configured
// display address.
type displayBus struct {
	i2c.Bus
	addr uint16
}

func (b displayBus) Tx(addr uint16, w, r []byte) error {
	if addr == ssd1306DefaultAddr {
		addr = b.addr
	}
	return b.Bus.Tx(addr, w, r)
}

// displayState holds the latest gesture for the OLED.
type displayState struct {
	mu   sync.RWMutex
	last GestureEvent
	have bool
}

func (s *displayState) set(ev GestureEvent) {
	s.mu.Lock()
	s.last = ev
	s.have = true
	s.mu.Unlock()
}

func (s *displayState) get() (GestureEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.have
}

// RenderGesture draws the gesture screen. An event older than displayHold
// is shown as idle with the previous gesture underneath.
func RenderGesture(ev GestureEvent, have bool, now time.Time) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	line := func(x, y int, s string) {
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(s)
	}

	switch {
	case !have:
		line(10, 26, "Gestures")
		line(10, 43, "Waiting...")
	case now.Sub(ev.Time) > displayHold:
		line(0, 13, "Ready")
		line(0, 39, "Last: "+ev.Gesture)
		line(0, 52, ev.Time.Local().Format("15:04:05"))
	default:
		line(0, 13, "GESTURE")
		line(10, 34, strings.ToUpper(ev.Gesture))
		line(0, 56, fmt.Sprintf("p=%.2f", ev.Confidence()))
	}
	return img
}

// RunDisplay shows the latest gesture on the SSD1306 OLED until ctx is done.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(displayBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	logger.Info("display: initialized", zap.String("addr", fmt.Sprintf("0x%02X", cfg.DisplayI2CAddr)))

	state := &displayState{}
	if err := dev.Draw(dev.Bounds(), RenderGesture(GestureEvent{}, false, time.Now()), image.Point{}); err != nil {
		logger.Warn("display: splash error", zap.Error(err))
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribeJSON(client, cfg.TopicGesture, func(_ mqtt.Client, msg mqtt.Message) {
		var ev GestureEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			logger.Warn("display: gesture unmarshal error", zap.Error(err))
			return
		}
		state.set(ev)
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(displayRefresh)
	defer ticker.Stop()

	logger.Info("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return dev.Halt()
		case now := <-ticker.C:
			ev, have := state.get()
			if err := dev.Draw(dev.Bounds(), RenderGesture(ev, have, now), image.Point{}); err != nil {
				logger.Warn("display: draw error", zap.Error(err))
			}
		}
	}
}
