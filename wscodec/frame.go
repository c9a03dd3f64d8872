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

// Package wscodec implements the WebSocket frame codec (C5, RFC 6455)
// that an HTTP connection switches to after a successful Upgrade, plus
// the upgrade.Provider that drives the handshake (§4.5).
package wscodec

import "github.com/packetd/httpcodec/result"

// Opcode identifies a WebSocket frame's payload interpretation (RFC
// 6455 §5.2).
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// IsControl reports whether op is a control opcode (§5.5): control
// frames are never fragmented and carry at most 125 bytes of payload.
func (op Opcode) IsControl() bool { return op&0x8 != 0 }

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "reserved"
	}
}

// FrameHeader is one WebSocket frame's header fields, decoded fully
// before any payload byte is delivered.
type FrameHeader struct {
	Fin        bool
	Opcode     Opcode
	Masked     bool
	MaskKey    [4]byte
	PayloadLen uint64
}

// FrameResult is the per-call outcome of Decoder.Decode, the
// WebSocket analog of result.DecodeResult: a frame header completes on
// its own event, and control-frame payloads (always small) arrive
// whole via ControlPayload rather than streamed to an out buffer.
type FrameResult struct {
	result.Result
	HeaderCompleted bool
	Header          FrameHeader
	FrameComplete   bool
	ControlPayload  []byte // valid when FrameComplete && Header.Opcode.IsControl()

	// Response, when non-nil, is a frame the caller must write verbatim
	// in reply to the frame just completed (§4.3.1/§4.3.2): a pong
	// mirroring a ping's payload, or a close echoing the peer's status.
	Response *ResponseFrame

	// ResponseOnly indicates the caller should write Response and
	// re-invoke Decode with the same input — no further decoding of
	// the current frame is required first.
	ResponseOnly bool
}

// ResponseFrame is a complete frame a Decoder asks its caller to write
// back, mirroring the arguments Encoder.WriteFrame expects.
type ResponseFrame struct {
	Fin     bool
	Opcode  Opcode
	Payload []byte
}

const maxControlPayload = 125

// validOpcodes are the RFC 6455 §5.2 opcodes this codec understands;
// anything else (0x3-0x7, 0xB-0xF) is reserved and rejected at the
// frame header (§4.3's testable property: a reserved opcode fails
// framing rather than being silently accepted).
func (op Opcode) valid() bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}
