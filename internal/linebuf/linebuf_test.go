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

package linebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedCompleteLineInOneShot(t *testing.T) {
	r := New(1024, "HTTP/1.1")
	defer r.Release()

	consumed, line, ok, err := r.Feed([]byte("GET / HTTP/1.1\r\nextra"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(line))
	assert.Equal(t, len("GET / HTTP/1.1\r\n"), consumed)
}

func TestFeedLineSplitAcrossCalls(t *testing.T) {
	r := New(1024, "HTTP/1.1")
	defer r.Release()

	consumed, _, ok, err := r.Feed([]byte("Host: exam"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 10, consumed)

	_, line, ok, err := r.Feed([]byte("ple.com\r\n"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Host: example.com\r\n", string(line))
}

func TestFeedBareCRErrors(t *testing.T) {
	r := New(1024, "HTTP/1.1")
	defer r.Release()

	_, _, _, err := r.Feed([]byte("bad\rX"))
	assert.Error(t, err)
}

func TestFeedExceedsMaxLen(t *testing.T) {
	r := New(4, "HTTP/1.1")
	defer r.Release()

	_, _, _, err := r.Feed([]byte("toolong"))
	assert.Error(t, err)
}
