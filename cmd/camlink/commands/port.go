// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/skylink-labs/camlink/cmd/camlink/directory"
	"github.com/skylink-labs/camlink/cmd/camlink/link"
	"github.com/spf13/cobra"
)

func PortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ports",
		Short:        "List the serial devices camlink would try",
		Long:         "List the serial devices camlink would try, in the order 'camlink run' tries them.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			if cfg.Port != "" {
				fmt.Printf("Configured port:\t%s\n", cfg.Port)
			}
			byID, err := link.Candidates(cfg.DeviceDir)
			if err != nil {
				fmt.Printf("No devices in %s: %v\n", cfg.DeviceDir, err)
			}
			for _, p := range byID {
				fmt.Println(p)
			}

			if all {
				system, err := link.SystemPorts(true)
				if err != nil {
					return err
				}
				for _, p := range system {
					fmt.Println(p)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "if set, also lists every serial port known to the system")
	cmd.Flags().String("device-dir", "", "directory with candidate serial devices")
	return cmd
}

func SetPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set-port",
		Short:        "Select the serial port you want to use",
		Long:         "Select the serial port 'camlink run' uses instead of scanning the device directory.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			forget, err := cmd.Flags().GetBool("clear")
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}
			if forget {
				cfg.Set(PortCfgKey, "")
				return directory.WriteConfig(cfg)
			}

			port, err := pickPort(portChoices(all))
			if err != nil {
				return err
			}
			cfg.Set(PortCfgKey, port)
			return directory.WriteConfig(cfg)
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	cmd.Flags().Bool("clear", false, "forget the selected port and scan again")
	return cmd
}

// portChoices merges the stable by-id names with the kernel names. The
// by-id names come first.
func portChoices(all bool) []string {
	var res []string
	seen := map[string]bool{}
	add := func(paths []string) {
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				res = append(res, p)
			}
		}
	}
	if byID, err := link.Candidates(directory.DefaultDeviceDir); err == nil {
		add(byID)
	}
	if system, err := link.SystemPorts(all); err == nil {
		add(system)
	}
	return res
}

func pickPort(ports []string) (string, error) {
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports detected. Is the flight controller connected?")
	}

	prompt := promptui.Select{
		Label:     "Choose what serial port you want to use",
		Items:     ports,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}

	return ports[i], nil
}
