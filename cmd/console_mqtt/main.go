package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/app"
	"github.com/relabs-tech/motion_gestures/internal/config"
)

func main() {
	cmd := app.NewCommand("console_mqtt",
		"Print gestures from MQTT to the terminal",
		func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
			return app.RunConsoleMQTT(ctx, cfg, os.Stdout, logger)
		})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "console_mqtt: %v\n", err)
		os.Exit(1)
	}
}
