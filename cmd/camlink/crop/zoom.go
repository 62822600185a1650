// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package crop steps the video pipeline through an ordered list of crop
// presets, from the full sensor down to the narrowest digital zoom.
package crop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/skylink-labs/camlink/cmd/camlink/majestic"
)

const (
	CommandZoomIn  = "zoom_in"
	CommandZoomOut = "zoom_out"
)

// Preset is a crop rectangle in sensor pixels.
type Preset struct {
	X      int
	Y      int
	Width  int
	Height int
}

// String renders the preset in Majestic's "XxYxWxH" notation.
func (p Preset) String() string {
	return fmt.Sprintf("%dx%dx%dx%d", p.X, p.Y, p.Width, p.Height)
}

func ParsePreset(s string) (Preset, error) {
	parts := strings.Split(strings.TrimSpace(s), "x")
	if len(parts) != 4 {
		return Preset{}, fmt.Errorf("invalid crop '%s', expected XxYxWxH", s)
	}
	var values [4]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return Preset{}, fmt.Errorf("invalid crop '%s', expected XxYxWxH", s)
		}
		values[i] = v
	}
	if values[2] == 0 || values[3] == 0 {
		return Preset{}, fmt.Errorf("invalid crop '%s', width and height must be positive", s)
	}
	return Preset{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
}

func ParsePresets(values []string) ([]Preset, error) {
	res := make([]Preset, 0, len(values))
	for _, v := range values {
		p, err := ParsePreset(v)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// DefaultPresets are tuned for a 3840x2160 sensor. Index 0 is the full view.
var DefaultPresets = []Preset{
	{X: 0, Y: 0, Width: 3840, Height: 2160},
	{X: 640, Y: 360, Width: 3200, Height: 1800},
	{X: 1280, Y: 720, Width: 2560, Height: 1440},
	{X: 1600, Y: 820, Width: 2240, Height: 1340},
}

// Step is the zoom transition function. It returns the new cursor and
// whether it moved; moves past either end of [0, n-1] are no-ops.
func Step(cursor int, n int, command string) (int, bool) {
	switch command {
	case CommandZoomIn:
		if cursor < n-1 {
			return cursor + 1, true
		}
	case CommandZoomOut:
		if cursor > 0 {
			return cursor - 1, true
		}
	}
	return cursor, false
}

// Applier writes a crop value into the streamer config.
type Applier interface {
	UpdateCrop(value string, mayCreate bool) majestic.Result
}

// Zoom holds the cursor into the preset list. It is not safe for concurrent
// use; the command loop owns it.
type Zoom struct {
	presets []Preset
	cursor  int
	applier Applier
	logger  hclog.Logger
}

func NewZoom(presets []Preset, applier Applier, logger hclog.Logger) (*Zoom, error) {
	if len(presets) == 0 {
		return nil, fmt.Errorf("no crop presets configured")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Zoom{
		presets: presets,
		applier: applier,
		logger:  logger,
	}, nil
}

func (z *Zoom) Cursor() int {
	return z.cursor
}

func (z *Zoom) Current() Preset {
	return z.presets[z.cursor]
}

func (z *Zoom) Presets() []Preset {
	return z.presets
}

// Setup writes the preset under the cursor, creating the key if needed.
func (z *Zoom) Setup() majestic.Result {
	return z.apply(true)
}

func (z *Zoom) ZoomIn() bool {
	moved, _ := z.Move(CommandZoomIn)
	return moved
}

func (z *Zoom) ZoomOut() bool {
	moved, _ := z.Move(CommandZoomOut)
	return moved
}

// Dispatch runs a zoom command. It reports whether command was one.
func (z *Zoom) Dispatch(command string) bool {
	switch command {
	case CommandZoomIn, CommandZoomOut:
		z.Move(command)
		return true
	}
	return false
}

// Move applies command and reports whether the cursor moved. The result of
// writing the new preset is only meaningful when it did.
func (z *Zoom) Move(command string) (bool, majestic.Result) {
	next, moved := Step(z.cursor, len(z.presets), command)
	if !moved {
		z.logger.Debug("zoom at limit", "command", command, "cursor", z.cursor)
		return false, 0
	}
	z.cursor = next
	return true, z.apply(false)
}

// Restore moves the cursor to the preset matching value without writing
// anything. Unknown values leave the cursor alone.
func (z *Zoom) Restore(value string) bool {
	p, err := ParsePreset(value)
	if err != nil {
		return false
	}
	for i, candidate := range z.presets {
		if candidate == p {
			z.cursor = i
			return true
		}
	}
	return false
}

func (z *Zoom) apply(mayCreate bool) majestic.Result {
	preset := z.presets[z.cursor]
	result := z.applier.UpdateCrop(preset.String(), mayCreate)
	z.logger.Info("crop applied", "cursor", z.cursor, "crop", preset.String(), "result", result.String())
	return result
}
