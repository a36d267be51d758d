package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"videowall/internal/config"
	"videowall/internal/layout"
	"videowall/internal/slot"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "output", "o", "", "Target path for the sample config")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved screen assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			videos, mapped, err := layout.ResolveVideos(cfg.Paths.MappingFile, cfg.Screens.Videos, cfg.Screens.Count)
			if err != nil {
				return err
			}

			var mapping *layout.Mapping
			if mapped {
				mapping, err = layout.Load(cfg.Paths.MappingFile)
				if err != nil {
					return err
				}
			}

			audio := cfg.Screens.AudioScreen
			if audio < 0 {
				audio = slot.PrimaryIndex(cfg.Screens.Count)
			}

			rows := make([][]string, 0, len(videos))
			for i, video := range videos {
				position := "-"
				if mapping != nil {
					if label := mapping.PositionFor(i); label != "" {
						position = label
					}
				}
				rows = append(rows, []string{
					strconv.Itoa(i),
					position,
					video,
					yesNo(i == audio),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "screens: %d  mapped layout: %s\n\n", cfg.Screens.Count, yesNo(mapped))
			fmt.Fprintln(out, renderTable(
				[]string{"Screen", "Position", "Video", "Audio"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
