package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/config"
	"github.com/relabs-tech/motion_gestures/internal/logger"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "./gesture_config.txt"

// RunFunc is the body of one binary.
type RunFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error

// NewCommand returns the root command of a binary: it loads the config,
// builds the logger and runs run until SIGINT or SIGTERM.
func NewCommand(use, short string, run RunFunc) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg := config.Get()

			log, err := logger.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			log = log.Named(use)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, cfg, log); err != nil {
				log.Error("fatal", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "path to configuration file")
	return cmd
}
