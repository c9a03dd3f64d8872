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
	"fmt"
	"strconv"

	"github.com/valyala/bytebufferpool"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/header"
	"github.com/packetd/httpcodec/logger"
	"github.com/packetd/httpcodec/result"
)

type encState uint8

const (
	encIdle encState = iota // awaiting BeginRequest/BeginResponse
	encHeader
	encBody
	// encPending holds the header block undrafted while §4.2.4's
	// pending-data buffer accumulates body bytes of unknown final
	// length; the header is only serialized once that length (or a
	// promotion to chunked/until-close) is decided.
	encPending
	// encPendingFlush drains the header+prefix buffer encPending just
	// built, then advances to pendingFlushNext (encDone or encBody).
	encPendingFlush
	encDone
)

type encChunkPhase uint8

const (
	encChunkAwaitData encChunkPhase = iota
	encChunkWriting
	encChunkTrailerCRLF
)

var pendingPool bytebufferpool.Pool

// Encoder is the HTTP/1.x encoder state machine (C4): a resumable,
// buffer-bounded serializer for the start line, header block and body,
// mirroring Decoder's suspend/resume contract in the write direction.
type Encoder struct {
	role   Role
	cfg    Config
	logger logger.Logger

	state   encState
	version string

	lastRequest *Request // the request most recently begun, for a paired response decoder (§4.1.3)
	peerDecoder *Decoder // the request decoder paired with this response encoder (§4.4)

	bodyMode  bodyMode
	remaining int64 // bodyLength bytes still to write

	chunkPhase    encChunkPhase
	chunkTerminal bool // the chunk currently being written is the 0-length terminator

	pending *bytebufferpool.ByteBuffer // bytes computed but not yet flushed to out
	pendOff int                        // how much of pending has already been flushed

	// §4.2.4 pending-data buffer state.
	pendingBody      *bytebufferpool.ByteBuffer // body bytes accumulated while the final length is unknown
	pendingReq       *Request                   // set while encPending and role is RoleClientResponse
	pendingRsp       *Response                  // set while encPending and role is RoleServerRequest
	pendingFlushNext encState                   // state to adopt once encPendingFlush drains

	closeAfter bool
}

// NewRequestEncoder returns a client-side encoder for outgoing requests.
func NewRequestEncoder(cfg Config) *Encoder {
	return &Encoder{role: RoleClientResponse, cfg: cfg, logger: cfg.Logger.Named("httpcodec.encoder.request"), pending: pendingPool.Get(), pendingBody: pendingPool.Get()}
}

// NewResponseEncoder returns a server-side encoder for outgoing responses.
func NewResponseEncoder(cfg Config) *Encoder {
	return &Encoder{role: RoleServerRequest, cfg: cfg, logger: cfg.Logger.Named("httpcodec.encoder.response"), pending: pendingPool.Get(), pendingBody: pendingPool.Get()}
}

// Release returns pooled resources. Call once the encoder is discarded.
func (e *Encoder) Release() {
	pendingPool.Put(e.pending)
	pendingPool.Put(e.pendingBody)
	e.pending = nil
	e.pendingBody = nil
}

// SetPeerDecoder installs the request decoder handling the other
// direction of this connection, so a response encoder can recover
// OriginatingRequest (needed for the §4.2.1/§4.2.3 body-mode and
// Content-Length decisions) when the application hasn't set it itself.
func (e *Encoder) SetPeerDecoder(dec *Decoder) { e.peerDecoder = dec }

// BeginRequest starts serializing req. Encode must then be called
// (possibly with an empty body buffer) until it reports neither
// overflow nor underflow.
func (e *Encoder) BeginRequest(req *Request) error {
	req.Fields.EnsureUpgradeConnection()
	req.Fields.EnforceFramingExclusivity()
	mode, remaining, err := decideEncodedRequestBodyMode(req)
	if err != nil {
		return err
	}
	e.version = req.Header.Version
	e.bodyMode = mode
	e.remaining = remaining
	e.lastRequest = req
	e.closeAfter = connectionHasToken(req.Fields, "close")

	if mode == bodyPending {
		e.pendingBody.Reset()
		e.pendingReq = req
		e.pendingRsp = nil
		e.state = encPending
		return nil
	}

	e.pending.Reset()
	e.pendOff = 0
	fmt.Fprintf(e.pending, "%s %s %s\r\n", req.Method, req.Target, req.Header.Version)
	writeHeaderBlock(e.pending, req.Fields)
	e.state = encHeader
	e.chunkPhase = encChunkAwaitData
	return nil
}

// BeginResponse starts serializing rsp.
func (e *Encoder) BeginResponse(rsp *Response) error {
	if rsp.OriginatingRequest == nil && e.peerDecoder != nil {
		if req, ok := e.peerDecoder.Header().(*Request); ok {
			rsp.OriginatingRequest = req
		}
	}

	rsp.Fields.EnsureUpgradeConnection()
	rsp.Fields.EnforceFramingExclusivity()

	now := e.cfg.Clock.Now()
	if err := rsp.Fields.SetTyped("Date", now); err != nil {
		return err
	}
	if err := synthesizeExpires(rsp.Fields, rsp.Header.Version, now); err != nil {
		return err
	}

	mode, remaining, err := decideEncodedResponseBodyMode(rsp)
	if err != nil {
		return err
	}
	e.version = rsp.Header.Version
	e.bodyMode = mode
	e.remaining = remaining
	e.closeAfter = connectionHasToken(rsp.Fields, "close") || rsp.Header.Version == "HTTP/1.0"

	if mode == bodyPending {
		e.pendingBody.Reset()
		e.pendingRsp = rsp
		e.pendingReq = nil
		e.state = encPending
		return nil
	}

	e.pending.Reset()
	e.pendOff = 0
	reason := rsp.Reason
	fmt.Fprintf(e.pending, "%s %d %s\r\n", rsp.Header.Version, rsp.StatusCode, reason)
	writeHeaderBlock(e.pending, rsp.Fields)
	e.state = encHeader
	e.chunkPhase = encChunkAwaitData
	return nil
}

func writeHeaderBlock(buf *bytebufferpool.ByteBuffer, fields interface {
	WireLines(func(name, value string))
}) {
	fields.WireLines(func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	})
	buf.WriteString("\r\n")
}

// writeStartLine serializes whichever of pendingReq/pendingRsp is active
// into buf's start line, without the trailing header block.
func (e *Encoder) writeStartLine(buf *bytebufferpool.ByteBuffer) {
	switch {
	case e.pendingReq != nil:
		fmt.Fprintf(buf, "%s %s %s\r\n", e.pendingReq.Method, e.pendingReq.Target, e.pendingReq.Header.Version)
	case e.pendingRsp != nil:
		fmt.Fprintf(buf, "%s %d %s\r\n", e.pendingRsp.Header.Version, e.pendingRsp.StatusCode, e.pendingRsp.Reason)
	}
}

// pendingFields returns the header.Fields of whichever of pendingReq/
// pendingRsp is active.
func (e *Encoder) pendingFields() *header.Fields {
	if e.pendingReq != nil {
		return e.pendingReq.Fields
	}
	return e.pendingRsp.Fields
}

// Encode writes as much of the current message as fits into out. body
// supplies the next slice of payload bytes for length/chunked/
// until-close framing; pass an empty, already-drained body with
// endOfBody true to signal the payload is complete.
func (e *Encoder) Encode(body, out *buffer.Bytes, endOfBody bool) (result.EncodeResult, error) {
	for {
		switch e.state {
		case encIdle, encDone:
			return result.EncodeResult{}, nil

		case encPending:
			res, done, err := e.encodePendingBody(body, endOfBody)
			if err != nil {
				return result.EncodeResult{}, err
			}
			if !done {
				return res, nil
			}
			// encodePendingBody decided the final framing and staged
			// the header(+prefix) into e.pending; encPendingFlush drains it.

		case encPendingFlush:
			if !e.flushPending(out) {
				return result.EncodeResult{Result: result.Result{Overflow: true}}, nil
			}
			e.pendingReq, e.pendingRsp = nil, nil
			e.state = e.pendingFlushNext
			if e.state == encDone {
				if e.closeAfter {
					return result.EncodeResult{Result: result.Result{CloseConnection: true}}, nil
				}
				return result.EncodeResult{}, nil
			}
			// e.state == encBody: loop continues, streaming whatever of
			// body/out/endOfBody this same call still carries.

		case encHeader:
			if !e.flushPending(out) {
				return result.EncodeResult{Result: result.Result{Overflow: true}}, nil
			}
			e.state = encBody

		case encBody:
			res, done := e.encodeBody(body, out, endOfBody)
			if !done {
				return res, nil
			}
			e.state = encDone
			if e.closeAfter {
				return result.EncodeResult{Result: result.Result{CloseConnection: true}}, nil
			}
			return result.EncodeResult{}, nil
		}
	}
}

// flushPending drains e.pending into out, returning true once fully
// flushed (false means out filled first; resume on the next call).
func (e *Encoder) flushPending(out *buffer.Bytes) bool {
	data := e.pending.Bytes()[e.pendOff:]
	if len(data) == 0 {
		return true
	}
	n := out.PutSlice(data)
	e.pendOff += n
	return e.pendOff >= e.pending.Len()
}

func (e *Encoder) encodeBody(body, out *buffer.Bytes, endOfBody bool) (result.EncodeResult, bool) {
	switch e.bodyMode {
	case bodyNone:
		return result.EncodeResult{}, true
	case bodyLength:
		return e.encodeLengthBody(body, out)
	case bodyChunked:
		return e.encodeChunkedBody(body, out, endOfBody)
	case bodyUntilClose:
		return e.encodeUntilCloseBody(body, out, endOfBody)
	default:
		return result.EncodeResult{}, true
	}
}

func (e *Encoder) encodeLengthBody(body, out *buffer.Bytes) (result.EncodeResult, bool) {
	for e.remaining > 0 {
		if !body.HasRemaining() {
			return result.EncodeResult{Result: result.Result{Underflow: true}}, false
		}
		if !out.HasRemaining() {
			return result.EncodeResult{Result: result.Result{Overflow: true}}, false
		}
		want := e.remaining
		avail := int64(body.Remaining())
		if avail < want {
			want = avail
		}
		n := out.PutSlice(body.Unread()[:want])
		body.Advance(n)
		e.remaining -= int64(n)
		if n == 0 {
			return result.EncodeResult{Result: result.Result{Overflow: true}}, false
		}
	}
	return result.EncodeResult{}, true
}

func (e *Encoder) encodeUntilCloseBody(body, out *buffer.Bytes, endOfBody bool) (result.EncodeResult, bool) {
	for body.HasRemaining() {
		if !out.HasRemaining() {
			return result.EncodeResult{Result: result.Result{Overflow: true}}, false
		}
		n := out.PutSlice(body.Unread())
		body.Advance(n)
		if n == 0 {
			return result.EncodeResult{Result: result.Result{Overflow: true}}, false
		}
	}
	if endOfBody {
		e.closeAfter = true
		return result.EncodeResult{}, true
	}
	return result.EncodeResult{Result: result.Result{Underflow: true}}, false
}

// encodeChunkedBody frames exactly one wire chunk per call's worth of
// body content (§4.2.4): the chunk size is fixed to body.Remaining()
// the moment a new chunk starts, so callers present one chunk's
// payload per Encode invocation and call again with fresh bytes (or an
// empty, endOfBody=true body to terminate).
func (e *Encoder) encodeChunkedBody(body, out *buffer.Bytes, endOfBody bool) (result.EncodeResult, bool) {
	for {
		switch e.chunkPhase {
		case encChunkAwaitData:
			if body.Remaining() == 0 {
				if !endOfBody {
					return result.EncodeResult{Result: result.Result{Underflow: true}}, false
				}
				e.chunkTerminal = true
				e.remaining = 0
				e.pending.Reset()
				e.pendOff = 0
				e.pending.WriteString("0\r\n")
				e.chunkPhase = encChunkWriting
				continue
			}
			e.chunkTerminal = false
			e.remaining = int64(body.Remaining())
			e.pending.Reset()
			e.pendOff = 0
			e.pending.WriteString(strconv.FormatInt(e.remaining, 16))
			e.pending.WriteString("\r\n")
			e.chunkPhase = encChunkWriting

		case encChunkWriting:
			if !e.flushPending(out) {
				return result.EncodeResult{Result: result.Result{Overflow: true}}, false
			}
			for e.remaining > 0 {
				if !body.HasRemaining() {
					return result.EncodeResult{Result: result.Result{Underflow: true}}, false
				}
				if !out.HasRemaining() {
					return result.EncodeResult{Result: result.Result{Overflow: true}}, false
				}
				want := e.remaining
				if avail := int64(body.Remaining()); avail < want {
					want = avail
				}
				n := out.PutSlice(body.Unread()[:want])
				body.Advance(n)
				e.remaining -= int64(n)
				if n == 0 {
					return result.EncodeResult{Result: result.Result{Overflow: true}}, false
				}
			}
			e.pending.Reset()
			e.pendOff = 0
			e.pending.WriteString("\r\n")
			e.chunkPhase = encChunkTrailerCRLF

		case encChunkTrailerCRLF:
			if !e.flushPending(out) {
				return result.EncodeResult{Result: result.Result{Overflow: true}}, false
			}
			if e.chunkTerminal {
				return result.EncodeResult{}, true
			}
			e.chunkPhase = encChunkAwaitData
		}
	}
}

// encodePendingBody implements §4.2.4: body bytes accumulate in
// e.pendingBody, up to cfg.PendingLimit, while the header is withheld.
// Reaching end-of-body within the limit finalizes a Content-Length
// header; exceeding the limit promotes to chunked (HTTP/1.1) or to a
// forced-close until-close body (HTTP/1.0). Either outcome stages the
// header (plus any already-buffered prefix) into e.pending and moves to
// encPendingFlush; it never touches out directly.
func (e *Encoder) encodePendingBody(body *buffer.Bytes, endOfBody bool) (result.EncodeResult, bool, error) {
	limit := e.cfg.PendingLimit
	for body.HasRemaining() && e.pendingBody.Len() < limit {
		room := limit - e.pendingBody.Len()
		n := body.Remaining()
		if n > room {
			n = room
		}
		e.pendingBody.Write(body.Unread()[:n])
		body.Advance(n)
	}

	if e.pendingBody.Len() >= limit && body.HasRemaining() {
		if err := e.promotePendingOverflow(); err != nil {
			return result.EncodeResult{}, false, err
		}
		return result.EncodeResult{}, true, nil
	}
	if !endOfBody {
		return result.EncodeResult{Result: result.Result{Underflow: true}}, false, nil
	}
	if err := e.finalizePendingComplete(); err != nil {
		return result.EncodeResult{}, false, err
	}
	return result.EncodeResult{}, true, nil
}

// finalizePendingComplete stages the deferred header, with a computed
// Content-Length, followed by the buffered body, once end-of-body
// arrived within the pending limit.
func (e *Encoder) finalizePendingComplete() error {
	fields := e.pendingFields()
	if err := fields.SetTyped("Content-Length", int64(e.pendingBody.Len())); err != nil {
		return err
	}

	e.pending.Reset()
	e.pendOff = 0
	e.writeStartLine(e.pending)
	writeHeaderBlock(e.pending, fields)
	e.pending.Write(e.pendingBody.Bytes())

	e.pendingFlushNext = encDone
	e.state = encPendingFlush
	return nil
}

// promotePendingOverflow stages the deferred header once the buffered
// prefix exceeds PendingLimit with more body still to come: HTTP/1.1
// promotes to chunked framing (the buffered prefix becomes the first
// chunk), HTTP/1.0 promotes to until-close framing with a forced close.
// Either way e.pending ends up holding everything up through that
// prefix, so encPendingFlush can drain it with the ordinary
// flushPending/pendOff resume mechanism before encBody takes over for
// whatever of the caller's body argument remains unconsumed.
func (e *Encoder) promotePendingOverflow() error {
	fields := e.pendingFields()
	prefix := e.pendingBody.Bytes()

	e.pending.Reset()
	e.pendOff = 0
	e.writeStartLine(e.pending)

	if e.version == "HTTP/1.0" {
		fields.Del("Content-Length")
		fields.Del("Transfer-Encoding")
		writeHeaderBlock(e.pending, fields)
		e.pending.Write(prefix)
		e.closeAfter = true
		e.bodyMode = bodyUntilClose
	} else {
		if err := fields.SetTyped("Transfer-Encoding", header.DirectiveList{"chunked"}); err != nil {
			return err
		}
		writeHeaderBlock(e.pending, fields)
		if len(prefix) > 0 {
			e.pending.WriteString(strconv.FormatInt(int64(len(prefix)), 16))
			e.pending.WriteString("\r\n")
			e.pending.Write(prefix)
			e.pending.WriteString("\r\n")
		}
		e.bodyMode = bodyChunked
		e.chunkPhase = encChunkAwaitData
	}

	e.pendingFlushNext = encBody
	e.state = encPendingFlush
	return nil
}
