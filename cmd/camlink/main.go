// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"os"

	"github.com/skylink-labs/camlink/cmd/camlink/commands"
)

var version = "v0.3.0"

var buildDate = "unknown"
var buildMode = "development"

func main() {
	isReleaseBuild := buildMode == "release"

	info := commands.Info{
		Date:    buildDate,
		Version: version,
	}
	ctx := commands.SetInfo(context.Background(), info)
	cmd := commands.CamlinkCmd(isReleaseBuild)
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
