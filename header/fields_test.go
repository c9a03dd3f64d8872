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

package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetCaseInsensitive(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.Set("content-length", "42"))
	v, ok := f.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "42", v)
	typed, ok := f.Typed("CONTENT-LENGTH")
	require.True(t, ok)
	assert.Equal(t, int64(42), typed)
}

func TestSetDuplicateSingleValuedErrors(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.Set("Host", "example.com"))
	err := f.Set("Host", "other.com")
	assert.Error(t, err)
}

func TestMultiValuedAppends(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.Set("Vary", "Accept-Encoding"))
	require.NoError(t, f.Set("Vary", "User-Agent"))
	assert.Equal(t, []string{"Accept-Encoding", "User-Agent"}, f.GetAll("Vary"))
}

func TestWireLinesSeparatesSetCookie(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.Set("Set-Cookie", "a=1"))
	require.NoError(t, f.Set("Set-Cookie", "b=2"))

	var lines [][2]string
	f.WireLines(func(name, value string) {
		lines = append(lines, [2]string{name, value})
	})
	require.Len(t, lines, 2)
	assert.Equal(t, "Set-Cookie", lines[0][0])
	assert.Equal(t, "a=1", lines[0][1])
	assert.Equal(t, "b=2", lines[1][1])
}

func TestEnforceFramingExclusivity(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.Set("Content-Length", "10"))
	require.NoError(t, f.Set("Transfer-Encoding", "chunked"))
	changed := f.EnforceFramingExclusivity()
	assert.True(t, changed)
	assert.False(t, f.Has("Content-Length"))
	assert.True(t, f.Has("Transfer-Encoding"))
}

func TestEnsureUpgradeConnection(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.SetTyped("Upgrade", DirectiveList{"websocket"}))
	require.NoError(t, f.EnsureUpgradeConnection())
	typed, ok := f.Typed("Connection")
	require.True(t, ok)
	assert.Contains(t, typed.(DirectiveList), "Upgrade")
}

func TestCanonicalizeUnknownField(t *testing.T) {
	f := NewFields()
	require.NoError(t, f.Set("x-request-id", "abc"))
	assert.Equal(t, "X-Request-Id", f.Canonical("X-REQUEST-ID"))
}

func TestDateConverterRoundTrips(t *testing.T) {
	typed, err := Date.FromFieldValue("Sun, 06 Nov 1994 08:49:37 GMT")
	require.NoError(t, err)
	s, err := Date.AsFieldValue(typed)
	require.NoError(t, err)
	assert.Equal(t, "Sun, 06 Nov 1994 08:49:37 GMT", s)
}

func TestMediaRangeParsesQ(t *testing.T) {
	typed, err := MediaRanges.ItemConverter().FromFieldValue("text/html; q=0.8")
	require.NoError(t, err)
	mr := typed.(MediaRange)
	assert.Equal(t, "text", mr.Type)
	assert.Equal(t, "html", mr.Subtype)
	assert.InDelta(t, 0.8, mr.Q, 0.0001)
}
