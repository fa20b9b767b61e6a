// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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
	cmd := app.NewCommand("console",
		"Run the gesture detector locally and print gestures (no MQTT)",
		func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
			return app.RunLocalConsole(ctx, cfg, os.Stdout, logger)
		})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}
