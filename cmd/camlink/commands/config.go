// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/skylink-labs/camlink/cmd/camlink/crop"
	"github.com/skylink-labs/camlink/cmd/camlink/directory"
	"github.com/skylink-labs/camlink/cmd/camlink/link"
	"github.com/skylink-labs/camlink/cmd/camlink/majestic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	PortCfgKey = "port"
)

type MajesticConfig struct {
	Config  string   `mapstructure:"config" yaml:"config"`
	Lock    string   `mapstructure:"lock" yaml:"lock"`
	Service string   `mapstructure:"service" yaml:"service"`
	Reload  []string `mapstructure:"reload" yaml:"reload"`
	API     string   `mapstructure:"api" yaml:"api"`
}

type CropConfig struct {
	Section string   `mapstructure:"section" yaml:"section"`
	Key     string   `mapstructure:"key" yaml:"key"`
	Presets []string `mapstructure:"presets" yaml:"presets"`
}

type Config struct {
	// Port pins the device. When empty every entry of DeviceDir is tried.
	Port           string         `mapstructure:"port" yaml:"port"`
	DeviceDir      string         `mapstructure:"deviceDir" yaml:"deviceDir"`
	Baud           int            `mapstructure:"baud" yaml:"baud"`
	SystemID       uint8          `mapstructure:"systemId" yaml:"systemId"`
	ComponentID    uint8          `mapstructure:"componentId" yaml:"componentId"`
	ContactTimeout time.Duration  `mapstructure:"contactTimeout" yaml:"contactTimeout"`
	WatchConfig    bool           `mapstructure:"watchConfig" yaml:"watchConfig"`
	Majestic       MajesticConfig `mapstructure:"majestic" yaml:"majestic"`
	Crop           CropConfig     `mapstructure:"crop" yaml:"crop"`
}

func (c Config) Identity() link.Identity {
	return link.Identity{SystemID: c.SystemID, ComponentID: c.ComponentID}
}

func (c Config) Target() majestic.Target {
	return majestic.Target{Section: c.Crop.Section, Key: c.Crop.Key}
}

func (c Config) Presets() ([]crop.Preset, error) {
	return crop.ParsePresets(c.Crop.Presets)
}

// Flags that override config keys.
var flagKeys = map[string]string{
	"port":            "port",
	"device-dir":      "deviceDir",
	"baud":            "baud",
	"contact-timeout": "contactTimeout",
	"watch-config":    "watchConfig",
	"majestic-config": "majestic.config",
}

func setDefaults(v *viper.Viper) {
	presets := make([]string, len(crop.DefaultPresets))
	for i, p := range crop.DefaultPresets {
		presets[i] = p.String()
	}

	v.SetDefault("port", "")
	v.SetDefault("deviceDir", directory.DefaultDeviceDir)
	v.SetDefault("baud", link.DefaultBaud)
	v.SetDefault("systemId", link.DefaultSystemID)
	v.SetDefault("componentId", link.DefaultComponentID)
	v.SetDefault("contactTimeout", time.Duration(0))
	v.SetDefault("watchConfig", false)
	v.SetDefault("majestic.config", directory.GetMajesticConfigPath())
	v.SetDefault("majestic.lock", directory.GetLockPath())
	v.SetDefault("majestic.service", majestic.DefaultService)
	v.SetDefault("majestic.reload", []string{})
	v.SetDefault("majestic.api", majestic.DefaultAPI)
	v.SetDefault("crop.section", majestic.DefaultSection)
	v.SetDefault("crop.key", majestic.DefaultKey)
	v.SetDefault("crop.presets", presets)
}

// LoadConfig layers defaults, the camlink config file, the environment and
// flags, in increasing priority. flags may be nil.
func LoadConfig(flags *pflag.FlagSet) (Config, error) {
	v, err := directory.GetUserConfig()
	if err != nil {
		return Config{}, err
	}
	setDefaults(v)

	v.SetEnvPrefix("camlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("majestic.config", "CAMLINK_MAJESTIC_CONFIG", directory.MajesticConfigPathEnv); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("majestic.lock", "CAMLINK_MAJESTIC_LOCK", directory.LockPathEnv); err != nil {
		return Config{}, err
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("invalid camlink config: %w", err)
	}
	if len(cfg.Crop.Presets) == 0 {
		return Config{}, fmt.Errorf("invalid camlink config: no crop presets")
	}
	if _, err := cfg.Presets(); err != nil {
		return Config{}, fmt.Errorf("invalid camlink config: %w", err)
	}
	return cfg, nil
}

func addMajesticFlags(flags *pflag.FlagSet) {
	flags.String("majestic-config", "", "path to the Majestic config (default "+directory.DefaultMajesticConfigPath+")")
}

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the camlink configuration",
		Long: "Inspect the camlink configuration.\n\n" +
			"camlink reads " + directory.DefaultUserConfigPath + " (or $" + directory.UserConfigPathEnv + "),\n" +
			"then CAMLINK_* environment variables, then command line flags.",
	}

	showCmd := &cobra.Command{
		Use:          "show",
		Short:        "Print the effective configuration",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(b))
			return nil
		},
	}
	addMajesticFlags(showCmd.Flags())
	cmd.AddCommand(showCmd)
	return cmd
}
