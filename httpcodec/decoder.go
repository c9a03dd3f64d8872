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
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/header"
	"github.com/packetd/httpcodec/internal/charutil"
	"github.com/packetd/httpcodec/internal/linebuf"
	"github.com/packetd/httpcodec/logger"
	"github.com/packetd/httpcodec/result"
	"github.com/packetd/httpcodec/upgrade"
)

// Role selects which side of which message a Decoder/Encoder handles,
// the "deep inheritance -> tagged variant" reformulation of §9 DESIGN
// NOTES: one concrete state machine parameterized by role instead of a
// Decoder/HttpDecoder/HttpRequestDecoder/HttpResponseDecoder hierarchy.
type Role uint8

const (
	RoleServerRequest  Role = iota // decodes requests, encodes responses
	RoleClientResponse             // decodes responses, encodes requests
)

type mainState uint8

const (
	stateAwaitStart mainState = iota
	stateHeaderLines
	stateBody
	stateClosed
)

type chunkPhase uint8

const (
	chunkAwaitSizeLine chunkPhase = iota
	chunkCopyData
	chunkAwaitDataCRLF
	// chunkFinishChar is the FINISH-CHARDECODER sub-state of §4.1.1,
	// entered once the zero-size chunk has been parsed: the body's
	// content is complete, so any bytes a multi-byte charset decoder is
	// still holding internally must be flushed before the trailer is read.
	chunkFinishChar
	chunkAwaitTrailerLine
)

// Config carries the engine knobs of §6: max-header-length bounds the
// decoder's line accumulator, PendingLimit bounds the encoder's
// buffered body, and the rest are ambient collaborators.
type Config struct {
	MaxHeaderLength int
	PendingLimit    int
	TranscodeBody   bool // when true, body bytes are charset-transcoded into out as UTF-8 per Content-Type
	Logger          logger.Logger
	Clock           Clock
	Upgrades        *upgrade.Registry
}

// DefaultConfig returns the engine knobs' documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxHeaderLength: 4 << 20,
		PendingLimit:    64 << 10,
		Logger:          logger.Nop(),
		Clock:           SystemClock,
		Upgrades:        upgrade.DefaultRegistry,
	}
}

// Decoder is the HTTP/1.x decoder state machine (C3): a resumable,
// buffer-bounded parser for the start line, header block, and body.
type Decoder struct {
	role   Role
	cfg    Config
	logger logger.Logger

	state      mainState
	lineReader *linebuf.Reader

	version string // negotiated once the start line is parsed

	req *Request  // being built (RoleServerRequest) or nil
	rsp *Response // being built (RoleClientResponse) or nil

	lastHeader any // most recently completed header, for Header() after completion

	bodyMode      bodyMode
	remaining     int64 // bodyLength / chunk data remaining
	chunkPhase    chunkPhase
	trailerNames  []string
	charDecoder   *charutil.Decoder

	closeAfter bool // Connection: close observed on the just-completed message
	closed     bool

	lastFieldName string // canonical name of the header field a fold line continues

	peerEncoder *Encoder // response decoder consults the last encoded request
}

// NewRequestDecoder returns a server-side decoder for incoming requests.
func NewRequestDecoder(cfg Config) *Decoder {
	return &Decoder{
		role:       RoleServerRequest,
		cfg:        cfg,
		logger:     cfg.Logger.Named("httpcodec.decoder.request"),
		lineReader: linebuf.New(cfg.MaxHeaderLength, "HTTP/1.1"),
	}
}

// NewResponseDecoder returns a client-side decoder for incoming responses.
func NewResponseDecoder(cfg Config) *Decoder {
	return &Decoder{
		role:       RoleClientResponse,
		cfg:        cfg,
		logger:     cfg.Logger.Named("httpcodec.decoder.response"),
		lineReader: linebuf.New(cfg.MaxHeaderLength, "HTTP/1.1"),
	}
}

// SetPeerEncoder installs the encoder handling the other direction of
// this connection, so a response decoder can consult the last encoded
// request (needed to disambiguate HEAD/CONNECT body framing, §4.1.3).
func (d *Decoder) SetPeerEncoder(enc *Encoder) { d.peerEncoder = enc }

// Header returns the header currently being assembled, or the most
// recently completed one if none is in progress.
func (d *Decoder) Header() any {
	switch {
	case d.req != nil:
		return d.req
	case d.rsp != nil:
		return d.rsp
	default:
		return d.lastHeader
	}
}

// Decode consumes in and, while a body is being produced, writes to out
// (see package buffer for the position/limit contract). end-of-input
// signals the peer half-closed the connection, relevant only to the
// until-close body mode.
func (d *Decoder) Decode(in, out *buffer.Bytes, endOfInput bool) (result.DecodeResult, error) {
	if d.closed {
		return result.DecodeResult{Result: result.Result{CloseConnection: true}}, nil
	}

	for {
		switch d.state {
		case stateAwaitStart:
			res, done, err := d.decodeStartLine(in)
			if err != nil {
				return d.fail(err)
			}
			if !done {
				return res, nil
			}
			// success: state already advanced to stateHeaderLines

		case stateHeaderLines:
			dr, done, err := d.decodeHeaderLines(in)
			if err != nil {
				return d.fail(err)
			}
			if !done {
				return dr, nil
			}
			return dr, nil // header-completed: always return this event on its own

		case stateBody:
			res, done, err := d.decodeBody(in, out, endOfInput)
			if err != nil {
				return d.fail(err)
			}
			if !done {
				return res, nil
			}
			// message finished: report clean completion (neither
			// overflow nor underflow) and reset for the next message,
			// or close immediately if the connection must not persist.
			if d.closeAfter || d.version == "HTTP/1.0" {
				d.state = stateClosed
				d.closed = true
				return result.DecodeResult{Result: result.Result{CloseConnection: true}}, nil
			}
			d.resetForNextMessage()
			return result.DecodeResult{}, nil

		case stateClosed:
			d.closed = true
			return result.DecodeResult{Result: result.Result{CloseConnection: true}}, nil
		}
	}
}

func (d *Decoder) fail(err error) (result.DecodeResult, error) {
	d.state = stateClosed
	d.closed = true
	if d.role == RoleServerRequest {
		resp := synthesizeErrorResponse(d.version, err)
		return result.DecodeResult{
			Result:       result.Result{CloseConnection: true},
			Response:     resp,
			ResponseOnly: true,
		}, nil
	}
	return result.DecodeResult{Result: result.Result{CloseConnection: true}}, err
}

func (d *Decoder) resetForNextMessage() {
	d.state = stateAwaitStart
	d.req = nil
	d.rsp = nil
	d.bodyMode = bodyNone
	d.remaining = 0
	d.chunkPhase = chunkAwaitSizeLine
	d.trailerNames = nil
	d.charDecoder = nil
	d.closeAfter = false
	d.lineReader.Reset()
	d.lineReader.ResetTotal()
}

// --- start line ---

func (d *Decoder) decodeStartLine(in *buffer.Bytes) (result.DecodeResult, bool, error) {
	consumed, line, ok, err := d.lineReader.Feed(in.Unread())
	in.Advance(consumed)
	if err != nil {
		return result.DecodeResult{}, false, err
	}
	if !ok {
		return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
	}

	text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
	d.lineReader.Reset()

	switch d.role {
	case RoleServerRequest:
		if err := d.parseRequestLine(text); err != nil {
			return result.DecodeResult{}, false, err
		}
	case RoleClientResponse:
		if err := d.parseStatusLine(text); err != nil {
			return result.DecodeResult{}, false, err
		}
	}
	d.state = stateHeaderLines
	return result.DecodeResult{}, true, nil
}

func (d *Decoder) parseRequestLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return result.Framingf("HTTP/1.1", "malformed request line %q", line)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return result.Framingf("HTTP/1.1", "unsupported protocol version %q", proto)
	}
	d.version = proto
	d.req = &Request{Header: newHeader(proto), Method: method, Target: target}
	return nil
}

func (d *Decoder) parseStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return result.Framingf("HTTP/1.1", "malformed status line %q", line)
	}
	proto := parts[0]
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return result.Framingf("HTTP/1.1", "unsupported protocol version %q", proto)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return result.Framingf(proto, "malformed status code %q", parts[1])
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	d.version = proto
	d.rsp = &Response{Header: newHeader(proto), StatusCode: code, Reason: reason}
	if d.peerEncoder != nil {
		d.rsp.OriginatingRequest = d.peerEncoder.lastRequest
	}
	return nil
}

// --- header block ---

func (d *Decoder) decodeHeaderLines(in *buffer.Bytes) (result.DecodeResult, bool, error) {
	fields := d.currentFields()
	for {
		consumed, line, ok, err := d.lineReader.Feed(in.Unread())
		in.Advance(consumed)
		if err != nil {
			return result.DecodeResult{}, false, err
		}
		if !ok {
			return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
		}

		if bytes.Equal(line, []byte("\r\n")) || bytes.Equal(line, []byte("\n")) {
			d.lineReader.Reset()
			return d.completeHeader(fields)
		}

		// RFC 7230 §3.2.4 legacy line folding: a line starting with SP/HT
		// continues the previous header's value.
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if err := d.appendFolded(fields, line); err != nil {
				return result.DecodeResult{}, false, err
			}
			d.lineReader.Reset()
			continue
		}

		if err := d.parseHeaderLine(fields, line); err != nil {
			return result.DecodeResult{}, false, err
		}
		d.lineReader.Reset()
	}
}

func (d *Decoder) currentFields() *header.Fields {
	if d.req != nil {
		return d.req.Fields
	}
	return d.rsp.Fields
}

func (d *Decoder) parseHeaderLine(fields *header.Fields, line []byte) error {
	text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return result.Framingf(d.version, "malformed header line %q", text)
	}
	name := strings.TrimSpace(text[:colon])
	value := strings.TrimSpace(text[colon+1:])
	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return result.NewError(result.KindConverter, d.version, 400, "Bad Request", "invalid header field "+name, nil)
	}
	if err := fields.Set(name, value); err != nil {
		return result.NewError(result.KindConverter, d.version, 400, "Bad Request", err.Error(), err)
	}
	d.lastFieldName = fields.Canonical(name)
	return nil
}

func (d *Decoder) appendFolded(fields *header.Fields, line []byte) error {
	if d.lastFieldName == "" {
		return result.Framingf(d.version, "header continuation with no preceding field")
	}
	extra := strings.TrimSpace(string(line))
	prev, _ := fields.Get(d.lastFieldName)
	return fields.Replace(d.lastFieldName, prev+" "+extra)
}

func (d *Decoder) completeHeader(fields *header.Fields) (result.DecodeResult, bool, error) {
	fields.EnforceFramingExclusivity()

	switch d.role {
	case RoleServerRequest:
		return d.completeRequestHeader()
	default:
		return d.completeResponseHeader()
	}
}
