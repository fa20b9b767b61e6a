package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/config"
)

// FormatGesture renders an event as one console line.
func FormatGesture(ev GestureEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[GESTURE] %s  %-7s p=%.2f  [", ev.Time.Local().Format("15:04:05.000"), strings.ToUpper(ev.Gesture), ev.Confidence())
	for i, p := range ev.Probabilities {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.2f", p)
	}
	b.WriteByte(']')
	return b.String()
}

// consoleHandler prints every valid gesture event to out.
func consoleHandler(out io.Writer, logger *zap.Logger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var ev GestureEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			logger.Warn("console: gesture unmarshal error", zap.Error(err))
			return
		}
		if err := ev.Validate(); err != nil {
			logger.Warn("console: invalid gesture event", zap.Error(err))
			return
		}
		fmt.Fprintln(out, FormatGesture(ev))
	}
}

// RunConsoleMQTT prints gestures from the bus to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}

	if err := subscribeJSON(client, cfg.TopicGesture, consoleHandler(out, logger)); err != nil {
		client.Disconnect(250)
		return err
	}
	logger.Info("console: subscribed", zap.String("topic", cfg.TopicGesture))

	<-ctx.Done()

	logger.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
