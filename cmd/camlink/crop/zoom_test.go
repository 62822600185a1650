// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package crop

import (
	"strings"
	"testing"

	"github.com/skylink-labs/camlink/cmd/camlink/majestic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applied struct {
	value     string
	mayCreate bool
}

type fakeApplier struct {
	calls  []applied
	result majestic.Result
}

func (a *fakeApplier) UpdateCrop(value string, mayCreate bool) majestic.Result {
	a.calls = append(a.calls, applied{value: value, mayCreate: mayCreate})
	return a.result
}

func TestStep(t *testing.T) {
	tests := []struct {
		commands string
		n        int
		cursor   int
	}{
		{commands: "", n: 4, cursor: 0},
		{commands: "out", n: 4, cursor: 0},
		{commands: "in", n: 4, cursor: 1},
		{commands: "in in in", n: 4, cursor: 3},
		{commands: "in in in in in in", n: 4, cursor: 3},
		{commands: "in in in in in out", n: 4, cursor: 2},
		{commands: "out out out in", n: 4, cursor: 1},
		{commands: "in in out in in in out", n: 4, cursor: 2},
		{commands: "in in out", n: 1, cursor: 0},
	}

	for _, test := range tests {
		t.Run(test.commands, func(t *testing.T) {
			cursor := 0
			for _, c := range strings.Fields(test.commands) {
				command := CommandZoomIn
				if c == "out" {
					command = CommandZoomOut
				}
				cursor, _ = Step(cursor, test.n, command)
				require.GreaterOrEqual(t, cursor, 0)
				require.Less(t, cursor, test.n)
			}
			assert.Equal(t, test.cursor, cursor)
		})
	}
}

func TestStepUnknownCommand(t *testing.T) {
	cursor, moved := Step(2, 4, "main_res_up")
	assert.Equal(t, 2, cursor)
	assert.False(t, moved)
}

func TestZoom(t *testing.T) {
	applier := &fakeApplier{result: majestic.ResultUpdated}
	z, err := NewZoom(DefaultPresets, applier, nil)
	require.NoError(t, err)

	assert.Equal(t, majestic.ResultUpdated, z.Setup())
	assert.Equal(t, []applied{{value: "0x0x3840x2160", mayCreate: true}}, applier.calls)

	assert.False(t, z.ZoomOut())
	assert.Len(t, applier.calls, 1)

	assert.True(t, z.Dispatch(CommandZoomIn))
	assert.Equal(t, 1, z.Cursor())
	assert.Equal(t, applied{value: "640x360x3200x1800"}, applier.calls[1])

	for i := 0; i < 5; i++ {
		z.ZoomIn()
	}
	assert.Equal(t, len(DefaultPresets)-1, z.Cursor())
	assert.Len(t, applier.calls, len(DefaultPresets))
	assert.Equal(t, "1600x820x2240x1340", z.Current().String())

	assert.False(t, z.Dispatch("day_mode"))
	assert.Len(t, applier.calls, len(DefaultPresets))
}

func TestZoomCursorMovesWhenWriteFails(t *testing.T) {
	applier := &fakeApplier{result: majestic.ResultKeyNotFound}
	z, err := NewZoom(DefaultPresets, applier, nil)
	require.NoError(t, err)

	assert.True(t, z.ZoomIn())
	assert.Equal(t, 1, z.Cursor())
}

func TestZoomRestore(t *testing.T) {
	applier := &fakeApplier{}
	z, err := NewZoom(DefaultPresets, applier, nil)
	require.NoError(t, err)

	assert.True(t, z.Restore("1280x720x2560x1440"))
	assert.Equal(t, 2, z.Cursor())
	assert.False(t, z.Restore("1x2x3x4"))
	assert.False(t, z.Restore("garbage"))
	assert.Equal(t, 2, z.Cursor())
	assert.Empty(t, applier.calls)
}

func TestNewZoomNoPresets(t *testing.T) {
	_, err := NewZoom(nil, &fakeApplier{}, nil)
	assert.Error(t, err)
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		in     string
		preset *Preset
	}{
		{in: "0x0x3840x2160", preset: &Preset{Width: 3840, Height: 2160}},
		{in: " 640x360x3200x1800 ", preset: &Preset{X: 640, Y: 360, Width: 3200, Height: 1800}},
		{in: "1x2x3"},
		{in: "1x2x3x4x5"},
		{in: "-1x0x10x10"},
		{in: "0x0x0x10"},
		{in: "axbxcxd"},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			res, err := ParsePreset(test.in)
			if test.preset == nil {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *test.preset, res)
			assert.Equal(t, strings.TrimSpace(test.in), res.String())
		})
	}
}

func TestParsePresets(t *testing.T) {
	res, err := ParsePresets([]string{"0x0x10x10", "1x1x8x8"})
	require.NoError(t, err)
	assert.Equal(t, []Preset{{Width: 10, Height: 10}, {X: 1, Y: 1, Width: 8, Height: 8}}, res)

	_, err = ParsePresets([]string{"0x0x10x10", "bad"})
	assert.Error(t, err)
}

func TestZoomMove(t *testing.T) {
	applier := &fakeApplier{result: majestic.ResultWriteFailed}
	z, err := NewZoom(DefaultPresets, applier, nil)
	require.NoError(t, err)

	moved, _ := z.Move(CommandZoomOut)
	assert.False(t, moved)
	assert.Empty(t, applier.calls)

	moved, result := z.Move(CommandZoomIn)
	assert.True(t, moved)
	assert.Equal(t, majestic.ResultWriteFailed, result)
	assert.Equal(t, []applied{{value: "640x360x3200x1800"}}, applier.calls)
}
