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

package wscodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/logger"
)

func TestOpcodeIsControl(t *testing.T) {
	assert.True(t, OpClose.IsControl())
	assert.True(t, OpPing.IsControl())
	assert.True(t, OpPong.IsControl())
	assert.False(t, OpText.IsControl())
	assert.False(t, OpBinary.IsControl())
	assert.False(t, OpContinuation.IsControl())
}

func TestTextFrameRoundTripMasked(t *testing.T) {
	enc := NewEncoder(true, logger.Nop())
	dec := NewDecoder(true, logger.Nop())
	defer dec.Release()

	out := buffer.New(256)
	payload := buffer.Wrap([]byte("hello websocket"))
	res, err := enc.WriteFrame(true, OpText, payload, out)
	require.NoError(t, err)
	assert.False(t, res.Overflow)
	assert.False(t, res.Underflow)

	out.Flip()
	got := buffer.New(256)
	dr1, err := dec.Decode(out, got)
	require.NoError(t, err)
	require.True(t, dr1.HeaderCompleted)
	assert.True(t, dr1.Header.Fin)
	assert.Equal(t, OpText, dr1.Header.Opcode)
	assert.True(t, dr1.Header.Masked)

	dr2, err := dec.Decode(out, got)
	require.NoError(t, err)
	assert.True(t, dr2.FrameComplete)

	got.Flip()
	assert.Equal(t, "hello websocket", string(got.Unread()))
}

func TestFragmentedTextFrameAcrossSmallBuffers(t *testing.T) {
	enc := NewEncoder(false, logger.Nop())
	dec := NewDecoder(false, logger.Nop())
	defer dec.Release()

	wire := buffer.New(256)
	payload := buffer.Wrap([]byte("a longer message body"))
	_, err := enc.WriteFrame(true, OpBinary, payload, wire)
	require.NoError(t, err)
	wire.Flip()

	full := append([]byte(nil), wire.Unread()...)
	got := buffer.New(256)

	var lastResult FrameResult
	for off := 0; off < len(full); off++ {
		in := buffer.Wrap(full[off : off+1])
		for in.HasRemaining() {
			dr, err := dec.Decode(in, got)
			require.NoError(t, err)
			lastResult = dr
			if dr.Underflow {
				break
			}
		}
	}
	assert.True(t, lastResult.FrameComplete)
	got.Flip()
	assert.Equal(t, "a longer message body", string(got.Unread()))
}

func TestMaskedCloseFrameControlPayload(t *testing.T) {
	enc := NewEncoder(true, logger.Nop())
	dec := NewDecoder(true, logger.Nop())
	defer dec.Release()

	out := buffer.New(64)
	payload := buffer.Wrap([]byte{0x03, 0xE8}) // close code 1000
	_, err := enc.WriteFrame(true, OpClose, payload, out)
	require.NoError(t, err)
	out.Flip()

	got := buffer.New(16)
	dr1, err := dec.Decode(out, got)
	require.NoError(t, err)
	require.True(t, dr1.HeaderCompleted)
	assert.Equal(t, OpClose, dr1.Header.Opcode)

	dr2, err := dec.Decode(out, got)
	require.NoError(t, err)
	require.True(t, dr2.FrameComplete)
	assert.Equal(t, []byte{0x03, 0xE8}, dr2.ControlPayload)
}

func TestServerRejectsUnmaskedFrame(t *testing.T) {
	dec := NewDecoder(true, logger.Nop())
	defer dec.Release()

	// FIN + text opcode, unmasked (MASK bit clear), length 0
	in := buffer.Wrap([]byte{0x81, 0x00})
	out := buffer.New(16)
	_, err := dec.Decode(in, out)
	assert.Error(t, err)
}

func TestServerRejectsReservedOpcode(t *testing.T) {
	dec := NewDecoder(true, logger.Nop())
	defer dec.Release()

	// FIN + reserved opcode 0x3, masked, length 0, zero mask key.
	in := buffer.Wrap([]byte{0x83, 0x80, 0x00, 0x00, 0x00, 0x00})
	out := buffer.New(16)
	_, err := dec.Decode(in, out)
	assert.Error(t, err)
}

func TestDecodePingGeneratesPongResponse(t *testing.T) {
	enc := NewEncoder(true, logger.Nop())
	dec := NewDecoder(true, logger.Nop())
	defer dec.Release()

	out := buffer.New(64)
	payload := buffer.Wrap([]byte("ping-body"))
	_, err := enc.WriteFrame(true, OpPing, payload, out)
	require.NoError(t, err)
	out.Flip()

	got := buffer.New(16)
	_, err = dec.Decode(out, got)
	require.NoError(t, err)

	dr, err := dec.Decode(out, got)
	require.NoError(t, err)
	require.True(t, dr.FrameComplete)
	require.NotNil(t, dr.Response)
	assert.Equal(t, OpPong, dr.Response.Opcode)
	assert.True(t, dr.Response.Fin)
	assert.Equal(t, []byte("ping-body"), dr.Response.Payload)
}

func TestDecodeCloseGeneratesCloseResponseAndEncoderReportsClose(t *testing.T) {
	enc := NewEncoder(true, logger.Nop())
	dec := NewDecoder(true, logger.Nop())
	defer dec.Release()

	out := buffer.New(64)
	payload := buffer.Wrap([]byte{0x03, 0xE8}) // close code 1000
	_, err := enc.WriteFrame(true, OpClose, payload, out)
	require.NoError(t, err)
	out.Flip()

	got := buffer.New(16)
	_, err = dec.Decode(out, got)
	require.NoError(t, err)

	dr, err := dec.Decode(out, got)
	require.NoError(t, err)
	require.True(t, dr.FrameComplete)
	require.NotNil(t, dr.Response)
	assert.Equal(t, OpClose, dr.Response.Opcode)
	assert.Equal(t, []byte{0x03, 0xE8}, dr.Response.Payload)

	respEnc := NewEncoder(false, logger.Nop())
	respOut := buffer.New(64)
	respPayload := buffer.Wrap(dr.Response.Payload)
	res, err := respEnc.WriteFrame(dr.Response.Fin, dr.Response.Opcode, respPayload, respOut)
	require.NoError(t, err)
	assert.True(t, res.CloseConnection)
}
