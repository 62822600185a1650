// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/term"
)

// NewLogger logs to stderr. Output is JSON unless stderr is a terminal, so
// that the service manager's journal gets structured records.
func NewLogger(level string) (hclog.Logger, error) {
	return newLogger(level, os.Stderr, !term.IsTerminal(int(os.Stderr.Fd())))
}

func newLogger(level string, out io.Writer, json bool) (hclog.Logger, error) {
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level '%s'", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "camlink",
		Level:      l,
		Output:     out,
		JSONFormat: json,
	}), nil
}
