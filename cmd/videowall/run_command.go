package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"videowall/internal/engine"
	"videowall/internal/hotplug"
	"videowall/internal/logging"
	"videowall/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the wall and keep every screen in sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if !skipPreflight {
				results := preflight.RunAll(signalCtx, cfg)
				if !preflight.AllPassed(results) {
					for _, result := range results {
						if !result.Passed {
							fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", result.Name, result.Detail)
						}
					}
					return fmt.Errorf("preflight failed; run `videowall check` for details")
				}
			}

			eng, err := engine.New(cfg, logger)
			if err != nil {
				return err
			}

			monitor := hotplug.NewMonitor(logger, nil)
			_ = monitor.Start(signalCtx)
			defer monitor.Stop()

			return eng.Run(signalCtx)
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before starting")
	return cmd
}
