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
	cmd := app.NewCommand("imu_producer",
		"Publish raw IMU readings to MQTT (IMU → MQTT)",
		app.RunInertialProducer)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "imu_producer: %v\n", err)
		os.Exit(1)
	}
}
