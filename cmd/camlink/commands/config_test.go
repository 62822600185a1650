// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skylink-labs/camlink/cmd/camlink/crop"
	"github.com/skylink-labs/camlink/cmd/camlink/directory"
	"github.com/skylink-labs/camlink/cmd/camlink/link"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConfigEnv(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camlink.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	t.Setenv(directory.UserConfigPathEnv, path)
	t.Setenv(directory.MajesticConfigPathEnv, "")
	t.Setenv("CAMLINK_MAJESTIC_CONFIG", "")
	t.Setenv("CAMLINK_BAUD", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setupConfigEnv(t, "")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, directory.DefaultDeviceDir, cfg.DeviceDir)
	assert.Equal(t, link.DefaultBaud, cfg.Baud)
	assert.Equal(t, link.DefaultIdentity, cfg.Identity())
	assert.Equal(t, time.Duration(0), cfg.ContactTimeout)
	assert.Equal(t, directory.DefaultMajesticConfigPath, cfg.Majestic.Config)
	assert.Equal(t, "video0", cfg.Target().Section)
	assert.Equal(t, "crop", cfg.Target().Key)

	presets, err := cfg.Presets()
	require.NoError(t, err)
	assert.Equal(t, crop.DefaultPresets, presets)
}

func TestLoadConfigFile(t *testing.T) {
	setupConfigEnv(t, `baud: 115200
contactTimeout: 30s
systemId: 3
majestic:
  config: /tmp/majestic.yaml
  reload: [signal-hup, term]
crop:
  presets:
    - 0x0x1920x1080
    - 480x270x960x540
`)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, 30*time.Second, cfg.ContactTimeout)
	assert.Equal(t, uint8(3), cfg.SystemID)
	assert.Equal(t, uint8(link.DefaultComponentID), cfg.ComponentID)
	assert.Equal(t, "/tmp/majestic.yaml", cfg.Majestic.Config)
	assert.Equal(t, []string{"signal-hup", "term"}, cfg.Majestic.Reload)
	assert.Equal(t, []string{"0x0x1920x1080", "480x270x960x540"}, cfg.Crop.Presets)
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	setupConfigEnv(t, "majestic:\n  config: /from/file.yaml\n")

	t.Setenv(directory.MajesticConfigPathEnv, "/from/env.yaml")
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", cfg.Majestic.Config)

	t.Setenv(directory.UserConfigPathEnv, filepath.Join(t.TempDir(), "none.yaml"))
	cfg, err = LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", cfg.Majestic.Config)
	assert.Equal(t, directory.GetMajesticConfigPath(), cfg.Majestic.Config)

	t.Setenv("CAMLINK_BAUD", "19200")
	t.Setenv("CAMLINK_CROP_PRESETS", "0x0x100x100,10x10x80x80")
	cfg, err = LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 19200, cfg.Baud)
	assert.Equal(t, []string{"0x0x100x100", "10x10x80x80"}, cfg.Crop.Presets)

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	addRunFlags(flags)
	require.NoError(t, flags.Parse([]string{"--baud=9600", "--majestic-config=/from/flag.yaml", "--contact-timeout=2s"}))
	cfg, err = LoadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, "/from/flag.yaml", cfg.Majestic.Config)
	assert.Equal(t, 2*time.Second, cfg.ContactTimeout)
}

func TestLoadConfigInvalidPreset(t *testing.T) {
	setupConfigEnv(t, "crop:\n  presets: [0x0x100]\n")

	_, err := LoadConfig(nil)
	assert.Error(t, err)
}
