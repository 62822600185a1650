// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		release bool
		version string
	}{
		{release: true, version: "v1.2.3"},
		{release: false, version: "development"},
	}

	for _, test := range tests {
		t.Run(test.version, func(t *testing.T) {
			var out bytes.Buffer
			cmd := CamlinkCmd(test.release)
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"version", "--log-level=error"})

			ctx := SetInfo(context.Background(), Info{Version: "v1.2.3", Date: "2024-05-01"})
			require.NoError(t, cmd.ExecuteContext(ctx))
			assert.Contains(t, out.String(), test.version)
			assert.Contains(t, out.String(), "2024-05-01")
		})
	}
}
