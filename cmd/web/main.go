// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/relabs-tech/motion_gestures/internal/app"
)

func main() {
	cmd := app.NewCommand("web",
		"Serve the latest gesture over HTTP and websocket (MQTT subscriber)",
		app.RunWeb)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "web: %v\n", err)
		os.Exit(1)
	}
}
