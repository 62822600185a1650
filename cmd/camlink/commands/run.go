// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/skylink-labs/camlink/cmd/camlink/crop"
	"github.com/skylink-labs/camlink/cmd/camlink/link"
	"github.com/skylink-labs/camlink/cmd/camlink/majestic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach to the flight controller and serve crop commands",
		Long: "Attach to the first serial device that opens, wait for the flight controller's\n" +
			"heartbeat and then serve STATUSTEXT commands until interrupted.\n\n" +
			"Recognized commands are 'zoom_in', 'zoom_out', 'day_mode' and 'night_mode'.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := GetLogger(ctx).With("session", uuid.New().String())
			return runDaemon(ctx, cfg, logger)
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func addRunFlags(flags *pflag.FlagSet) {
	flags.String("port", "", "serial device to use instead of scanning the device directory")
	flags.String("device-dir", "", "directory with candidate serial devices")
	flags.Int("baud", link.DefaultBaud, "serial baud rate")
	flags.Duration("contact-timeout", 0, "give up if no heartbeat arrives in time (0 waits forever)")
	flags.Bool("watch-config", false, "watch the Majestic config and resync the crop cursor on external edits")
	addMajesticFlags(flags)
}

type daemon struct {
	editor *majestic.Editor
	zoom   *crop.Zoom
	lights *majestic.Lights
	logger hclog.Logger
}

func newDaemon(cfg Config, logger hclog.Logger) (*daemon, error) {
	strategies, err := majestic.ParseStrategies(cfg.Majestic.Reload, cfg.Majestic.Service)
	if err != nil {
		return nil, err
	}
	editor := majestic.NewEditor(majestic.EditorConfig{
		Path:     cfg.Majestic.Config,
		LockPath: cfg.Majestic.Lock,
		Target:   cfg.Target(),
		Reloader: majestic.NewReloader(logger.Named("reload"), strategies...),
		Logger:   logger.Named("majestic"),
	})

	presets, err := cfg.Presets()
	if err != nil {
		return nil, err
	}
	zoom, err := crop.NewZoom(presets, editor, logger.Named("crop"))
	if err != nil {
		return nil, err
	}

	return &daemon{
		editor: editor,
		zoom:   zoom,
		lights: majestic.NewLights(cfg.Majestic.API, logger.Named("lights")),
		logger: logger,
	}, nil
}

func (d *daemon) dispatch(text string) bool {
	return d.zoom.Dispatch(text) || d.lights.Dispatch(text)
}

func (d *daemon) setup() {
	d.zoom.Setup()
}

// resync follows an external edit of the crop key. Values outside the
// preset list are left alone and the cursor keeps its position.
func (d *daemon) resync() {
	value, ok, err := d.editor.Current()
	if err != nil {
		d.logger.Warn("majestic config changed but cannot be read", "error", err)
		return
	}
	if !ok || value == d.zoom.Current().String() {
		return
	}
	if d.zoom.Restore(value) {
		d.logger.Info("crop changed externally, cursor moved", "crop", value, "cursor", d.zoom.Cursor())
		return
	}
	d.logger.Warn("crop changed externally to a value outside the presets", "crop", value, "expected", d.zoom.Current().String())
}

func deviceCandidates(cfg Config) ([]string, error) {
	if cfg.Port != "" {
		return []string{cfg.Port}, nil
	}
	return link.Candidates(cfg.DeviceDir)
}

func runDaemon(ctx context.Context, cfg Config, logger hclog.Logger) error {
	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}

	candidates, err := deviceCandidates(cfg)
	if err != nil {
		return err
	}
	linkLogger := logger.Named("link")
	opener := link.SerialOpener{Baud: cfg.Baud, Identity: cfg.Identity(), Logger: linkLogger}
	l, device, err := link.Discover(candidates, opener, linkLogger)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info("link established", "device", device, "system", cfg.SystemID, "component", cfg.ComponentID)

	loopCfg := link.LoopConfig{
		Link:           l,
		ContactTimeout: cfg.ContactTimeout,
		OnFirstContact: d.setup,
		Dispatch:       d.dispatch,
		Logger:         logger.Named("loop"),
	}
	if cfg.WatchConfig {
		w, err := majestic.NewWatcher(d.editor.Path(), logger.Named("watch"))
		if err != nil {
			return err
		}
		defer w.Close()
		loopCfg.Changes = w.Changed()
		loopCfg.OnChange = d.resync
	}

	return link.NewLoop(loopCfg).Run(ctx)
}
