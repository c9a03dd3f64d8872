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

package httpcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcodec/buffer"
)

// These run each body mode through its end-of-body path, including the
// FINISH-CHARDECODER flush, with a trailing non-ASCII byte sitting right
// at the Content-Length/chunk/close boundary, and check that it appears
// transcoded in out. ISO-8859-1 is a single-byte charset, so its decoder
// converts that byte as soon as it is copied; the flush itself has
// nothing left to emit here.

func TestDecodeLengthBodyTranscodesTrailingLatin1Byte(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TranscodeBody = true
	dec := NewResponseDecoder(cfg)

	// "caf\xe9" in ISO-8859-1 is "café"; the last body byte (0xE9) is the
	// one that must survive the end-of-body flush.
	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Length: 4\r\n\r\n" +
		"caf\xe9"
	in := buffer.Wrap([]byte(raw))
	out := buffer.New(64)

	dr1, err := dec.Decode(in, out, false)
	require.NoError(t, err)
	require.True(t, dr1.HeaderCompleted)

	dr2, err := dec.Decode(in, out, false)
	require.NoError(t, err)
	assert.False(t, dr2.Overflow)
	assert.False(t, dr2.Underflow)

	out.Flip()
	assert.Equal(t, "café", string(out.Unread()))
}

func TestDecodeUntilCloseBodyTranscodesTrailingLatin1Byte(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TranscodeBody = true
	dec := NewResponseDecoder(cfg)

	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n\r\n" +
		"caf\xe9"
	in := buffer.Wrap([]byte(raw))
	out := buffer.New(64)

	dr1, err := dec.Decode(in, out, false)
	require.NoError(t, err)
	require.True(t, dr1.HeaderCompleted)

	dr2, err := dec.Decode(in, out, true)
	require.NoError(t, err)
	assert.True(t, dr2.CloseConnection)

	out.Flip()
	assert.Equal(t, "café", string(out.Unread()))
}

func TestDecodeChunkedBodyTranscodesTrailingLatin1Byte(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TranscodeBody = true
	dec := NewResponseDecoder(cfg)

	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n" +
		"4\r\ncaf\xe9\r\n" +
		"0\r\n\r\n"
	in := buffer.Wrap([]byte(raw))
	out := buffer.New(64)

	dr1, err := dec.Decode(in, out, false)
	require.NoError(t, err)
	require.True(t, dr1.HeaderCompleted)

	dr2, err := dec.Decode(in, out, false)
	require.NoError(t, err)
	assert.False(t, dr2.Overflow)
	assert.False(t, dr2.Underflow)

	out.Flip()
	assert.Equal(t, "café", string(out.Unread()))
}
