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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/header"
)

func TestEncodeResponseContentLength(t *testing.T) {
	enc := NewResponseEncoder(DefaultConfig())
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 200, "OK")
	rsp.Fields.SetTyped("Content-Length", int64(11))
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	body := buffer.Wrap([]byte("Hello World"))

	res, err := enc.Encode(body, out, true)
	require.NoError(t, err)
	assert.False(t, res.Overflow)
	assert.False(t, res.Underflow)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, wire, "Content-Length: 11\r\n")
	assert.Contains(t, wire, "Hello World")
}

func TestEncodeResponseChunkedMultipleChunks(t *testing.T) {
	enc := NewResponseEncoder(DefaultConfig())
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 200, "OK")
	rsp.Fields.SetTyped("Transfer-Encoding", header.DirectiveList{"chunked"})
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)

	chunk1 := buffer.Wrap([]byte("Hello"))
	res1, err := enc.Encode(chunk1, out, false)
	require.NoError(t, err)
	assert.True(t, res1.Underflow)

	chunk2 := buffer.Wrap([]byte(" World"))
	res2, err := enc.Encode(chunk2, out, false)
	require.NoError(t, err)
	assert.True(t, res2.Underflow)

	empty := buffer.Wrap(nil)
	res3, err := enc.Encode(empty, out, true)
	require.NoError(t, err)
	assert.False(t, res3.Overflow)
	assert.False(t, res3.Underflow)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "Transfer-Encoding: chunked\r\n")
	assert.Contains(t, wire, "5\r\nHello\r\n")
	assert.Contains(t, wire, "6\r\n World\r\n")
	assert.Contains(t, wire, "0\r\n\r\n")
}

func TestEncodeChunkedResumesAcrossSmallOutBuffer(t *testing.T) {
	enc := NewResponseEncoder(DefaultConfig())
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 200, "OK")
	rsp.Fields.SetTyped("Transfer-Encoding", header.DirectiveList{"chunked"})
	require.NoError(t, enc.BeginResponse(rsp))

	// drain the header first with a generous buffer
	hdrOut := buffer.New(256)
	empty := buffer.Wrap(nil)
	_, err := enc.Encode(empty, hdrOut, false)
	require.NoError(t, err)

	body := buffer.Wrap([]byte("abc"))
	var wire []byte
	small := buffer.New(1)
	done := false
	for i := 0; i < 100 && !done; i++ {
		small.Reset()
		res, err := enc.Encode(body, small, true)
		require.NoError(t, err)
		small.Flip()
		wire = append(wire, small.Unread()...)
		done = !res.Overflow
	}
	require.True(t, done, "encoder did not finish within the iteration bound")
	assert.Equal(t, "3\r\nabc\r\n0\r\n\r\n", string(wire))
}

func TestEncodeResponseStampsDateFromClock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clock = FixedClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	enc := NewResponseEncoder(cfg)
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 200, "OK")
	rsp.Fields.SetTyped("Content-Length", int64(0))
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	empty := buffer.Wrap(nil)
	_, err := enc.Encode(empty, out, true)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "Date: Fri, 31 Jul 2026 12:00:00 GMT\r\n")
}

func TestEncodeResponseOverwritesApplicationSetDate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clock = FixedClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	enc := NewResponseEncoder(cfg)
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 200, "OK")
	rsp.Fields.SetTyped("Content-Length", int64(0))
	rsp.Fields.SetTyped("Date", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	empty := buffer.Wrap(nil)
	_, err := enc.Encode(empty, out, true)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "Date: Fri, 31 Jul 2026 12:00:00 GMT\r\n")
	assert.NotContains(t, wire, "2020")
}

func TestEncodeRequestWithPayloadFlagInjectsChunked(t *testing.T) {
	enc := NewRequestEncoder(DefaultConfig())
	defer enc.Release()

	req := NewRequest("HTTP/1.1", "POST", "/upload")
	req.Fields.Set("Host", "example.com")
	req.HasPayload = true
	require.NoError(t, enc.BeginRequest(req))

	out := buffer.New(256)
	body := buffer.Wrap([]byte("hi"))
	_, err := enc.Encode(body, out, true)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "Transfer-Encoding: chunked\r\n")
	assert.Contains(t, wire, "2\r\nhi\r\n")
}

func TestEncodeRequestWithoutPayloadOmitsBody(t *testing.T) {
	enc := NewRequestEncoder(DefaultConfig())
	defer enc.Release()

	req := NewRequest("HTTP/1.1", "GET", "/")
	req.Fields.Set("Host", "example.com")
	require.NoError(t, enc.BeginRequest(req))

	out := buffer.New(256)
	empty := buffer.Wrap(nil)
	_, err := enc.Encode(empty, out, true)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.NotContains(t, wire, "Transfer-Encoding")
	assert.NotContains(t, wire, "Content-Length")
}

func TestEncodeResponseStripsContentLengthFor204(t *testing.T) {
	enc := NewResponseEncoder(DefaultConfig())
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 204, "No Content")
	rsp.Fields.SetTyped("Content-Length", int64(5))
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	empty := buffer.Wrap(nil)
	_, err := enc.Encode(empty, out, true)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.NotContains(t, wire, "Content-Length")
}

func TestEncodeResponseInjectsContentLengthZeroWhenNoPayloadDeclared(t *testing.T) {
	enc := NewResponseEncoder(DefaultConfig())
	defer enc.Release()

	rsp := NewResponse("HTTP/1.1", 200, "OK")
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	empty := buffer.Wrap(nil)
	_, err := enc.Encode(empty, out, true)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "Content-Length: 0\r\n")
}

func TestEncodeResponseForcesCloseForHTTP10(t *testing.T) {
	enc := NewResponseEncoder(DefaultConfig())
	defer enc.Release()

	rsp := NewResponse("HTTP/1.0", 200, "OK")
	rsp.Fields.SetTyped("Content-Length", int64(0))
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	empty := buffer.Wrap(nil)
	res, err := enc.Encode(empty, out, true)
	require.NoError(t, err)
	assert.True(t, res.CloseConnection)
}

func TestEncodeResponsePendingBodyFinalizesContentLengthWithinLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PendingLimit = 64
	enc := NewResponseEncoder(cfg)
	defer enc.Release()

	rsp := NewResponse("HTTP/1.0", 200, "OK")
	rsp.HasPayload = true
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	body := buffer.Wrap([]byte("Hello World"))
	res, err := enc.Encode(body, out, true)
	require.NoError(t, err)
	assert.False(t, res.Overflow)
	assert.False(t, res.Underflow)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "Content-Length: 11\r\n")
	assert.Contains(t, wire, "Hello World")
}

func TestEncodeResponsePendingBodyOverflowClosesAfterBodyOnHTTP10(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PendingLimit = 4
	enc := NewResponseEncoder(cfg)
	defer enc.Release()

	rsp := NewResponse("HTTP/1.0", 200, "OK")
	rsp.HasPayload = true
	require.NoError(t, enc.BeginResponse(rsp))

	out := buffer.New(256)
	body := buffer.Wrap([]byte("Hello World"))
	res, err := enc.Encode(body, out, true)
	require.NoError(t, err)
	assert.False(t, res.Overflow)
	assert.False(t, res.Underflow)
	assert.True(t, res.CloseConnection)

	out.Flip()
	wire := string(out.Unread())
	assert.NotContains(t, wire, "Content-Length")
	assert.Contains(t, wire, "Hello World")
}

func TestEncodeRequestSetsHostAndEnforcesFramingExclusivity(t *testing.T) {
	enc := NewRequestEncoder(DefaultConfig())
	defer enc.Release()

	req := NewRequest("HTTP/1.1", "GET", "/")
	req.Fields.Set("Host", "example.com")
	req.Fields.SetTyped("Content-Length", int64(5))
	req.Fields.SetTyped("Transfer-Encoding", header.DirectiveList{"chunked"})
	require.NoError(t, enc.BeginRequest(req))

	out := buffer.New(256)
	body := buffer.Wrap([]byte("hello"))
	_, err := enc.Encode(body, out, false)
	require.NoError(t, err)

	out.Flip()
	wire := string(out.Unread())
	assert.Contains(t, wire, "GET / HTTP/1.1\r\n")
	assert.Contains(t, wire, "Host: example.com\r\n")
	assert.NotContains(t, wire, "Content-Length")
}
