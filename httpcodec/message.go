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

// Package httpcodec implements the non-blocking HTTP/1.x decoder (C3)
// and encoder (C4) state machines: the core of this module. Both
// operate strictly on caller-supplied buffer.Bytes, never perform I/O,
// and never spawn concurrency — see the package-level buffer contract
// in package buffer.
package httpcodec

import (
	"github.com/packetd/httpcodec/header"
)

// Header is the abstract message header of §3 DATA MODEL: a protocol
// version tag, a case-insensitive field mapping, and a has-payload flag.
// Request and Response embed it, adding their own back-pointer.
type Header struct {
	Version    string // "HTTP/1.0" or "HTTP/1.1"
	Fields     *header.Fields
	HasPayload bool
}

func newHeader(version string) Header {
	return Header{Version: version, Fields: header.NewFields()}
}

// Request is an HTTP request message header (§3). PreparedResponse is
// the opaque back-pointer a server-side decoder attaches so the
// application can fill in and send a response without separately
// tracking which request it answers.
type Request struct {
	Header
	Method           string
	Target           string
	Host             string
	Port             string
	PreparedResponse *Response
}

// Response is an HTTP response message header (§3). OriginatingRequest
// is the opaque back-pointer a client-side decoder attaches so
// §4.1.3's body-mode decision (HEAD, CONNECT, 1xx/204/304) can consult
// the request that elicited it.
type Response struct {
	Header
	StatusCode         int
	Reason             string
	OriginatingRequest *Request
}

// NewRequest returns an empty request header for the given protocol
// version, ready to be filled in by an application and handed to an
// Encoder.
func NewRequest(version, method, target string) *Request {
	return &Request{Header: newHeader(version), Method: method, Target: target}
}

// NewResponse returns an empty response header.
func NewResponse(version string, statusCode int, reason string) *Response {
	return &Response{Header: newHeader(version), StatusCode: statusCode, Reason: reason}
}

// bodyMode is the decided body framing for a message, shared by both
// the decoder (to know how much to drain) and the encoder (to know how
// to frame what it is given).
type bodyMode uint8

const (
	bodyNone bodyMode = iota
	bodyLength
	bodyChunked
	bodyUntilClose
	// bodyPending is encoder-only (§4.2.4): the body's final length is
	// not yet known (HTTP/1.0, no Content-Length/Transfer-Encoding, but
	// a payload was declared) so bytes accumulate in a pending buffer
	// until PendingLimit is reached or the caller signals end-of-body.
	bodyPending
)
