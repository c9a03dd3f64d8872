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

package engineopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyOverridesDefaults(t *testing.T) {
	o := NewOptions()
	o.Merge("max-header-length", 1024)
	o.Merge("transcode-body", true)

	s := o.Apply(DefaultSettings())
	assert.Equal(t, 1024, s.MaxHeaderLength)
	assert.True(t, s.TranscodeBody)
	assert.Equal(t, DefaultSettings().PendingLimit, s.PendingLimit)
}

func TestApplyIgnoresAbsentKeys(t *testing.T) {
	o := NewOptions()
	s := o.Apply(DefaultSettings())
	assert.Equal(t, DefaultSettings(), s)
}

func TestApplyIgnoresUncastableValue(t *testing.T) {
	o := NewOptions()
	o.Merge("max-header-length", "not-a-number")
	s := o.Apply(DefaultSettings())
	assert.Equal(t, DefaultSettings().MaxHeaderLength, s.MaxHeaderLength)
}
