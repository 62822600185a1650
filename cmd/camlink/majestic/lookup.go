// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package majestic

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Lookup parses data as YAML and returns the value of target. It is
// read-only: edits go through PlanEdit so that formatting survives.
func Lookup(data []byte, target Target) (string, bool, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("invalid majestic config: %w", err)
	}
	for _, section := range doc {
		if fmt.Sprint(section.Key) != target.Section {
			continue
		}
		entries, ok := section.Value.(yaml.MapSlice)
		if !ok {
			return "", false, nil
		}
		for _, entry := range entries {
			if fmt.Sprint(entry.Key) == target.Key {
				if entry.Value == nil {
					return "", true, nil
				}
				return fmt.Sprint(entry.Value), true, nil
			}
		}
		return "", false, nil
	}
	return "", false, nil
}
