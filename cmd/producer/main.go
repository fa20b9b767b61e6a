package main

import (
	"context"
	"fmt"
	"os"

	"github.com/relabs-tech/motion_gestures/internal/app"
)

func main() {
	cmd := app.NewCommand("producer",
		"Publish synthetic IMU readings with periodic gestures to MQTT (mock)",
		app.RunMockProducer)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "producer: %v\n", err)
		os.Exit(1)
	}
}
