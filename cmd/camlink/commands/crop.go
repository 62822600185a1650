// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/skylink-labs/camlink/cmd/camlink/crop"
	"github.com/skylink-labs/camlink/cmd/camlink/majestic"
	"github.com/spf13/cobra"
)

func CropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Inspect or change the crop in the Majestic config",
		Long: "Inspect or change the crop in the Majestic config.\n\n" +
			"These commands edit the same key as 'camlink run' and signal Majestic to reload\n" +
			"after every change. They are meant for bench testing without a flight controller.",
	}

	cmd.AddCommand(
		cropShowCmd(),
		cropSetCmd(),
		cropPresetsCmd(),
		cropStepCmd("zoom-in", crop.CommandZoomIn, "Move to the next narrower preset"),
		cropStepCmd("zoom-out", crop.CommandZoomOut, "Move to the next wider preset"),
	)
	for _, sub := range cmd.Commands() {
		addMajesticFlags(sub.Flags())
	}
	return cmd
}

func newEditor(cfg Config, logger hclog.Logger) (*majestic.Editor, error) {
	strategies, err := majestic.ParseStrategies(cfg.Majestic.Reload, cfg.Majestic.Service)
	if err != nil {
		return nil, err
	}
	return majestic.NewEditor(majestic.EditorConfig{
		Path:     cfg.Majestic.Config,
		LockPath: cfg.Majestic.Lock,
		Target:   cfg.Target(),
		Reloader: majestic.NewReloader(logger.Named("reload"), strategies...),
		Logger:   logger.Named("majestic"),
	}), nil
}

func cropShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "show",
		Short:        "Print the crop currently in the Majestic config",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			editor, err := newEditor(cfg, GetLogger(cmd.Context()))
			if err != nil {
				return err
			}
			value, ok, err := editor.Current()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no '%s' under '%s' in %s", cfg.Crop.Key, cfg.Crop.Section, editor.Path())
			}
			fmt.Println(value)
			return nil
		},
	}
}

func cropSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set <XxYxWxH>",
		Short:        "Write a crop into the Majestic config",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := crop.ParsePreset(args[0])
			if err != nil {
				return err
			}
			create, err := cmd.Flags().GetBool("create")
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			editor, err := newEditor(cfg, GetLogger(cmd.Context()))
			if err != nil {
				return err
			}
			return reportResult(editor.UpdateCrop(preset.String(), create), preset)
		},
	}
	cmd.Flags().Bool("create", false, "add the key when the section has none")
	return cmd
}

func cropPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "presets",
		Short:        "List the configured crop presets",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			presets, err := cfg.Presets()
			if err != nil {
				return err
			}
			for i, p := range presets {
				fmt.Printf("[%d] %s\n", i, p)
			}
			return nil
		},
	}
}

func cropStepCmd(use string, command string, short string) *cobra.Command {
	return &cobra.Command{
		Use:          use,
		Short:        short,
		Long:         short + ", starting from the crop currently in the Majestic config.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			logger := GetLogger(cmd.Context())
			editor, err := newEditor(cfg, logger)
			if err != nil {
				return err
			}
			presets, err := cfg.Presets()
			if err != nil {
				return err
			}
			zoom, err := crop.NewZoom(presets, editor, logger.Named("crop"))
			if err != nil {
				return err
			}
			return stepCrop(editor, zoom, command)
		},
	}
}

// stepCrop positions zoom on the value in the file, which must be one of
// the presets, and applies a single step.
func stepCrop(editor *majestic.Editor, zoom *crop.Zoom, command string) error {
	value, ok, err := editor.Current()
	if err != nil {
		return err
	}
	if ok && !zoom.Restore(value) {
		return fmt.Errorf("current crop '%s' is not one of the presets", value)
	}
	if !ok {
		return fmt.Errorf("no crop in %s, use 'camlink crop set --create' first", editor.Path())
	}
	switch command {
	case crop.CommandZoomIn, crop.CommandZoomOut:
	default:
		return fmt.Errorf("unknown zoom command '%s'", command)
	}
	moved, result := zoom.Move(command)
	if !moved {
		fmt.Printf("[%d] %s (already at the limit)\n", zoom.Cursor(), zoom.Current())
		return nil
	}
	return reportResult(result, zoom.Current())
}

func reportResult(result majestic.Result, preset crop.Preset) error {
	if !result.Changed() {
		return fmt.Errorf("crop not written: %s", result)
	}
	fmt.Printf("crop %s: %s\n", result, preset)
	return nil
}
