package main

import (
	"context"
	"fmt"
	"os"

	"github.com/relabs-tech/motion_gestures/internal/app"
)

func main() {
	cmd := app.NewCommand("display",
		"Show the latest gesture on the SSD1306 OLED (MQTT subscriber)",
		app.RunDisplay)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "display: %v\n", err)
		os.Exit(1)
	}
}
