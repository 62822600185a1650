// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package directory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// UserConfigPathEnv if set, will load the camlink config from that path.
	UserConfigPathEnv = "CAMLINK_CONFIG_PATH"
	// MajesticConfigPathEnv if set, points to the Majestic streamer config.
	// The name is shared with the other OpenIPC tools on the camera.
	MajesticConfigPathEnv = "MAJESTIC_CONFIG_PATH"
	// LockPathEnv overrides where the edit lock for the Majestic config lives.
	LockPathEnv = "CAMLINK_LOCK_PATH"

	DefaultUserConfigPath     = "/etc/camlink/camlink.yaml"
	DefaultMajesticConfigPath = "/etc/majestic.yaml"
	// Entries here keep their names across reboots, unlike /dev/ttyACM*.
	DefaultDeviceDir = "/dev/serial/by-id"

	lockFile = "camlink-majestic.lock"
)

func GetUserConfigPath() string {
	if path, ok := os.LookupEnv(UserConfigPathEnv); ok {
		return path
	}
	return DefaultUserConfigPath
}

func GetMajesticConfigPath() string {
	if path, ok := os.LookupEnv(MajesticConfigPathEnv); ok && path != "" {
		return path
	}
	return DefaultMajesticConfigPath
}

func GetLockPath() string {
	if path, ok := os.LookupEnv(LockPathEnv); ok && path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), lockFile)
}

func GetUserConfig() (*viper.Viper, error) {
	path := GetUserConfigPath()

	cfg := viper.New()
	cfg.SetConfigType("yaml")
	cfg.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read camlink config: %w", err)
		}
	}
	return cfg, nil
}

func WriteConfig(cfg *viper.Viper) error {
	file := cfg.ConfigFileUsed()
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmpFile := filepath.Join(dir, ".camlink.tmp.yaml")
	if err := cfg.WriteConfigAs(tmpFile); err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	return os.Rename(tmpFile, file)
}
