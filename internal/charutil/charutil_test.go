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

package charutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/transform"
)

func TestLookupEmptyFallsBackToUTF8(t *testing.T) {
	dec, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", dec.Name())

	dst := make([]byte, 16)
	nDst, nSrc, err := dec.Decode(dst, []byte("hello"), true)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(dst[:nDst]))
	assert.Equal(t, 5, nSrc)
}

func TestLookupUnknownCharsetErrors(t *testing.T) {
	_, err := Lookup("not-a-real-charset")
	assert.Error(t, err)
}

func TestLookupISO88591Transcodes(t *testing.T) {
	dec, err := Lookup("iso-8859-1")
	require.NoError(t, err)

	// 0xE9 in Latin-1 is U+00E9 (é), encoded as 0xC3 0xA9 in UTF-8.
	dst := make([]byte, 16)
	nDst, _, err := dec.Decode(dst, []byte{0xE9}, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC3, 0xA9}, dst[:nDst])
}

func TestDecodeShortDstSignalsOverflow(t *testing.T) {
	dec, err := Lookup("")
	require.NoError(t, err)
	dst := make([]byte, 2)
	_, nSrc, err := dec.Decode(dst, []byte("hello"), false)
	assert.Equal(t, transform.ErrShortDst, err)
	assert.Equal(t, 2, nSrc)
}
