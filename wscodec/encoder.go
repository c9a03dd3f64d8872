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
	"crypto/rand"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/logger"
	"github.com/packetd/httpcodec/result"
)

type encState uint8

const (
	encAwaitFrame encState = iota
	encWritingHeader
	encWritingPayload
)

// Encoder is the WebSocket frame encoder, mirroring Decoder's
// suspend/resume contract in the write direction.
type Encoder struct {
	mustMask bool // true for a client-side encoder: clients must mask outgoing frames
	logger   logger.Logger

	state   encState
	header  [14]byte
	hdrLen  int
	hdrOff  int
	mask    [4]byte
	maskIdx int

	remaining uint64
	fin       bool
	opcode    Opcode
}

// NewEncoder returns a frame encoder. mustMask must be true on the
// client side and false on the server side (RFC 6455 §5.1).
func NewEncoder(mustMask bool, log logger.Logger) *Encoder {
	return &Encoder{mustMask: mustMask, logger: log.Named("wscodec.encoder")}
}

// WriteFrame begins (or resumes) writing one frame: fin/opcode describe
// the frame, payload supplies its bytes (possibly across several calls
// until payload.Remaining() reaches zero), and out receives wire bytes.
// Completing a close frame reports CloseConnection (§4.3.2): once the
// close-response has actually been written, the connection is done.
func (e *Encoder) WriteFrame(fin bool, opcode Opcode, payload, out *buffer.Bytes) (result.Result, error) {
	if e.state == encAwaitFrame {
		e.beginFrame(fin, opcode, uint64(payload.Remaining()))
	}

	for {
		switch e.state {
		case encWritingHeader:
			n := out.PutSlice(e.header[e.hdrOff:e.hdrLen])
			e.hdrOff += n
			if e.hdrOff < e.hdrLen {
				return result.Result{Overflow: true}, nil
			}
			e.state = encWritingPayload

		case encWritingPayload:
			for e.remaining > 0 {
				if !payload.HasRemaining() {
					return result.Result{Underflow: true}, nil
				}
				if !out.HasRemaining() {
					return result.Result{Overflow: true}, nil
				}
				n := payload.Remaining()
				if room := out.Remaining(); room < n {
					n = room
				}
				if uint64(n) > e.remaining {
					n = int(e.remaining)
				}
				src := payload.Unread()[:n]
				dst := out.Unread()[:n]
				if e.mustMask {
					for i := 0; i < n; i++ {
						dst[i] = src[i] ^ e.mask[e.maskIdx%4]
						e.maskIdx++
					}
				} else {
					copy(dst, src)
				}
				payload.Advance(n)
				out.Advance(n)
				e.remaining -= uint64(n)
			}
			e.state = encAwaitFrame
			return result.Result{CloseConnection: e.opcode == OpClose}, nil
		}
	}
}

func (e *Encoder) beginFrame(fin bool, opcode Opcode, payloadLen uint64) {
	e.fin = fin
	e.opcode = opcode
	e.remaining = payloadLen
	e.maskIdx = 0

	b0 := byte(opcode)
	if fin {
		b0 |= 0x80
	}
	e.header[0] = b0

	maskBit := byte(0)
	if e.mustMask {
		maskBit = 0x80
		_, _ = rand.Read(e.mask[:])
	}

	i := 1
	switch {
	case payloadLen < 126:
		e.header[i] = maskBit | byte(payloadLen)
		i++
	case payloadLen <= 0xFFFF:
		e.header[i] = maskBit | 126
		i++
		e.header[i] = byte(payloadLen >> 8)
		e.header[i+1] = byte(payloadLen)
		i += 2
	default:
		e.header[i] = maskBit | 127
		i++
		for shift := 56; shift >= 0; shift -= 8 {
			e.header[i] = byte(payloadLen >> uint(shift))
			i++
		}
	}
	if e.mustMask {
		copy(e.header[i:], e.mask[:])
		i += 4
	}
	e.hdrLen = i
	e.hdrOff = 0
	e.state = encWritingHeader
}
