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
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/logger"
	"github.com/packetd/httpcodec/result"
)

type decState uint8

const (
	decAwaitByte0 decState = iota
	decAwaitByte1
	decAwaitExtLen
	decAwaitMaskKey
	decPayload
	decClosed
)

var controlPool bytebufferpool.Pool

// Decoder is the WebSocket frame decoder: a resumable, buffer-bounded
// parser mirroring httpcodec.Decoder's contract (caller-owned
// buffer.Bytes, no I/O, no blocking).
type Decoder struct {
	requireMask bool // true for a server-side decoder: clients must mask (RFC 6455 §5.1)
	logger      logger.Logger

	state  decState
	need   int
	got    int
	scratch [8]byte

	header  FrameHeader
	maskIdx int

	remaining uint64

	control *bytebufferpool.ByteBuffer

	closed bool
}

// NewDecoder returns a frame decoder. requireMask must be true on the
// server side (incoming client frames are required to be masked) and
// false on the client side (incoming server frames must be unmasked).
func NewDecoder(requireMask bool, log logger.Logger) *Decoder {
	return &Decoder{requireMask: requireMask, logger: log.Named("wscodec.decoder"), control: controlPool.Get()}
}

// Release returns pooled resources.
func (d *Decoder) Release() {
	controlPool.Put(d.control)
	d.control = nil
}

// Decode consumes in and, for data frames, streams unmasked payload
// bytes into out. Control frame payloads are buffered whole and
// surfaced via FrameResult.ControlPayload once the frame completes.
func (d *Decoder) Decode(in, out *buffer.Bytes) (FrameResult, error) {
	if d.closed {
		return FrameResult{Result: result.Result{CloseConnection: true}}, nil
	}
	for {
		switch d.state {
		case decAwaitByte0:
			if !in.HasRemaining() {
				return FrameResult{Result: result.Result{Underflow: true}}, nil
			}
			b := in.Unread()[0]
			in.Advance(1)
			d.header = FrameHeader{
				Fin:    b&0x80 != 0,
				Opcode: Opcode(b & 0x0F),
			}
			if b&0x70 != 0 {
				return d.fail(result.Framingf("", "reserved bits set in WebSocket frame header"))
			}
			if !d.header.Opcode.valid() {
				return d.fail(result.Framingf("", "reserved WebSocket opcode %#x", byte(d.header.Opcode)))
			}
			d.state = decAwaitByte1

		case decAwaitByte1:
			if !in.HasRemaining() {
				return FrameResult{Result: result.Result{Underflow: true}}, nil
			}
			b := in.Unread()[0]
			in.Advance(1)
			d.header.Masked = b&0x80 != 0
			if d.header.Masked != d.requireMask {
				return d.fail(result.Framingf("", "WebSocket frame masking violates peer role"))
			}
			lenField := b & 0x7F
			switch {
			case lenField < 126:
				d.header.PayloadLen = uint64(lenField)
				d.state = d.afterLength()
			case lenField == 126:
				d.need, d.got = 2, 0
				d.state = decAwaitExtLen
			default:
				d.need, d.got = 8, 0
				d.state = decAwaitExtLen
			}
			if d.header.Opcode.IsControl() && d.header.PayloadLen > maxControlPayload {
				return d.fail(result.Framingf("", "control frame payload exceeds 125 bytes"))
			}

		case decAwaitExtLen:
			for d.got < d.need {
				if !in.HasRemaining() {
					return FrameResult{Result: result.Result{Underflow: true}}, nil
				}
				d.scratch[d.got] = in.Unread()[0]
				in.Advance(1)
				d.got++
			}
			var n uint64
			for i := 0; i < d.need; i++ {
				n = n<<8 | uint64(d.scratch[i])
			}
			d.header.PayloadLen = n
			if d.header.Opcode.IsControl() && n > maxControlPayload {
				return d.fail(result.Framingf("", "control frame payload exceeds 125 bytes"))
			}
			d.state = d.afterLength()

		case decAwaitMaskKey:
			for d.got < 4 {
				if !in.HasRemaining() {
					return FrameResult{Result: result.Result{Underflow: true}}, nil
				}
				d.header.MaskKey[d.got] = in.Unread()[0]
				in.Advance(1)
				d.got++
			}
			d.remaining = d.header.PayloadLen
			d.maskIdx = 0
			d.state = decPayload
			return FrameResult{HeaderCompleted: true, Header: d.header}, nil

		case decPayload:
			if d.header.Opcode.IsControl() {
				return d.decodeControlPayload(in)
			}
			return d.decodeDataPayload(in, out)

		case decClosed:
			d.closed = true
			return FrameResult{Result: result.Result{CloseConnection: true}}, nil
		}
	}
}

// afterLength returns the state that follows the length field. Masked
// and unmasked frames both pass through decAwaitMaskKey, which emits the
// header-completed event; an unmasked frame has no key bytes to read, so
// its key counter starts full.
func (d *Decoder) afterLength() decState {
	if d.header.Masked {
		d.got = 0
	} else {
		d.got = 4
	}
	return decAwaitMaskKey
}

func (d *Decoder) fail(err error) (FrameResult, error) {
	d.state = decClosed
	d.closed = true
	return FrameResult{Result: result.Result{CloseConnection: true}}, err
}

// decodeControlPayload completes a control frame and, for ping and
// close, attaches the auto-response (§4.3.1/§4.3.2) the caller must
// write back: a pong with the same payload, or a close echoing the
// peer's status code. The decoder itself never marks the connection
// closed on an incoming close frame — that happens once the encoder
// has actually written the close-response (see Encoder.WriteFrame).
func (d *Decoder) decodeControlPayload(in *buffer.Bytes) (FrameResult, error) {
	for d.remaining > 0 {
		if !in.HasRemaining() {
			return FrameResult{Result: result.Result{Underflow: true}}, nil
		}
		b := in.Unread()[0]
		in.Advance(1)
		if d.header.Masked {
			b ^= d.header.MaskKey[d.maskIdx%4]
			d.maskIdx++
		}
		d.control.WriteByte(b)
		d.remaining--
	}
	payload := append([]byte(nil), d.control.Bytes()...)
	d.control.Reset()
	d.state = decAwaitByte0
	d.got = 0

	fr := FrameResult{FrameComplete: true, Header: d.header, ControlPayload: payload}
	switch d.header.Opcode {
	case OpPing:
		fr.Response = &ResponseFrame{Fin: true, Opcode: OpPong, Payload: payload}
	case OpClose:
		status := payload
		if len(status) > 2 {
			status = status[:2]
		}
		fr.Response = &ResponseFrame{Fin: true, Opcode: OpClose, Payload: status}
	}
	return fr, nil
}

func (d *Decoder) decodeDataPayload(in, out *buffer.Bytes) (FrameResult, error) {
	for d.remaining > 0 {
		if !in.HasRemaining() {
			return FrameResult{Result: result.Result{Underflow: true}}, nil
		}
		if !out.HasRemaining() {
			return FrameResult{Result: result.Result{Overflow: true}}, nil
		}
		n := in.Remaining()
		if room := out.Remaining(); room < n {
			n = room
		}
		if uint64(n) > d.remaining {
			n = int(d.remaining)
		}
		src := in.Unread()[:n]
		dst := out.Unread()[:n]
		if d.header.Masked {
			for i := 0; i < n; i++ {
				dst[i] = src[i] ^ d.header.MaskKey[d.maskIdx%4]
				d.maskIdx++
			}
		} else {
			copy(dst, src)
		}
		in.Advance(n)
		out.Advance(n)
		d.remaining -= uint64(n)
	}
	d.state = decAwaitByte0
	d.got = 0
	return FrameResult{FrameComplete: true, Header: d.header}, nil
}
