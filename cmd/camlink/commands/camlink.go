// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

type ctxKey string

const (
	ctxKeyInfo   ctxKey = "info"
	ctxKeyLogger ctxKey = "logger"
)

type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

func SetInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKeyInfo, info)
}

func GetInfo(ctx context.Context) Info {
	info, _ := ctx.Value(ctxKeyInfo).(Info)
	return info
}

func SetLogger(ctx context.Context, logger hclog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLogger returns the logger installed by the root command, or a logger
// that drops everything.
func GetLogger(ctx context.Context) hclog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKeyLogger).(hclog.Logger); ok {
			return logger
		}
	}
	return hclog.NewNullLogger()
}

func CamlinkCmd(isReleaseBuild bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camlink",
		Short: "Drive the camera crop from the flight controller",
		Long: "camlink runs on the camera's companion computer. It attaches to the flight controller\n" +
			"over MAVLink, announces itself with heartbeats and turns STATUSTEXT commands such as\n" +
			"'zoom_in' and 'zoom_out' into crop changes in the Majestic streamer config.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := cmd.Flags().GetString("log-level")
			if err != nil {
				return err
			}
			logger, err := NewLogger(level)
			if err != nil {
				return err
			}
			cmd.SetContext(SetLogger(cmd.Context(), logger))
			return nil
		},
	}
	cmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn or error")

	cmd.AddCommand(
		RunCmd(),
		CropCmd(),
		PortsCmd(),
		SetPortCmd(),
		ConfigCmd(),
		VersionCmd(isReleaseBuild),
	)
	return cmd
}
