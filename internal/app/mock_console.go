// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/classifier"
	"github.com/relabs-tech/motion_gestures/internal/config"
	"github.com/relabs-tech/motion_gestures/internal/detector"
	"github.com/relabs-tech/motion_gestures/internal/timeutil"
)

// consoleListener writes every gesture to out as a console line.
type consoleListener struct {
	out   io.Writer
	clock timeutil.Clock
}

func printListener(out io.Writer, clock timeutil.Clock) detector.Listener {
	return consoleListener{out: out, clock: clock}
}

func (l consoleListener) OnGesture(g detector.Gesture, probabilities []float64) {
	l.OnEvent(detector.Event{Gesture: g, Probabilities: probabilities, At: l.clock.Now()})
}

func (l consoleListener) OnEvent(e detector.Event) {
	fmt.Fprintln(l.out, FormatGesture(NewGestureEvent(e.Gesture, e.Probabilities, e.At)))
}

// RunLocalConsole runs the detector in-process and prints gestures to out,
// without MQTT. The mqtt sensor source is not available here.
func RunLocalConsole(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	src, err := NewSampleSource(cfg, nil, logger)
	if err != nil {
		return err
	}

	det, err := detector.New(src, classifier.NewTemplate(cfg.ClassifierModel),
		printListener(out, timeutil.RealClock{}), DetectorOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	if err := det.Start(); err != nil {
		return err
	}
	logger.Info("console: detecting locally", zap.String("source", cfg.SensorSource))

	<-ctx.Done()
	det.Stop()
	return nil
}
