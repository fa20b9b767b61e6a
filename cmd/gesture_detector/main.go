package main

import (
	"context"
	"fmt"
	"os"

	"github.com/relabs-tech/motion_gestures/internal/app"
)

func main() {
	cmd := app.NewCommand("gesture_detector",
		"Recognise motion gestures from the IMU and publish them to MQTT",
		app.RunGestureDetector)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "gesture_detector: %v\n", err)
		os.Exit(1)
	}
}
