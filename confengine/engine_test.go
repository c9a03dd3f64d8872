// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package confengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEngineConfigContentReconciles(t *testing.T) {
	yaml := []byte(`
max-header-length: 2048
transcode-body: true
log:
  stdout: true
  level: warn
`)
	cfg, logOpts, err := LoadEngineConfigContent(yaml)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.MaxHeaderLength)
	assert.True(t, cfg.TranscodeBody)
	assert.True(t, logOpts.Stdout)
	assert.Equal(t, "warn", logOpts.Level)
	// pending-limit absent from the file: falls back to the documented default.
	assert.Equal(t, 64<<10, cfg.PendingLimit)
}

func TestLoadEngineConfigContentDefaultsWhenEmpty(t *testing.T) {
	cfg, _, err := LoadEngineConfigContent([]byte(`log:
  stdout: true
`))
	require.NoError(t, err)
	assert.Equal(t, 4<<20, cfg.MaxHeaderLength)
	assert.False(t, cfg.TranscodeBody)
}
