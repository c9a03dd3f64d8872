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

// Package result defines the tri-state outcome every decode/encode call
// returns (C8 in the component design), plus the protocol-switch triple
// an engine stages when an upgrade handshake completes.
package result

// Result is the common part shared by decoder and encoder outcomes: it
// tells the caller whether to supply more input, drain output, or close
// the connection. Exactly the fields named in DATA MODEL's "Decoder
// outcome" / "Encoder outcome" records that both subtypes share.
type Result struct {
	// Overflow is true when the output buffer filled before the codec
	// finished producing everything it could; the caller must drain
	// output and call again with the same (or advanced) input.
	Overflow bool

	// Underflow is true when the codec consumed all available input but
	// needs more to make progress; the caller must supply more bytes.
	Underflow bool

	// CloseConnection is true when the codec has determined the
	// connection must be torn down after this call (Connection: close,
	// HTTP/1.0 without keep-alive, or a completed WebSocket close
	// handshake).
	CloseConnection bool
}

// Switch is the protocol-switch triple staged by a decoder or encoder
// result once a 101 Switching Protocols handshake has been observed. The
// engine (C6) installs NewDecoder/NewEncoder atomically inside the call
// that completes the handshake (the client's DecodeResponse of the 101,
// the server's EncodeResponse that finishes writing it), so the new pair
// is already active when that call returns.
type Switch struct {
	Protocol   string
	NewEncoder any
	NewDecoder any
}

// DecodeResult is the decoder subtype of Result (§3 DATA MODEL).
type DecodeResult struct {
	Result

	// HeaderCompleted is true exactly once per message, on the call
	// whose processing finished assembling the header block.
	HeaderCompleted bool

	// Response, when non-nil, is a header the caller must send verbatim
	// (a synthesized error response, or a WebSocket auto-response such
	// as a pong or close-response).
	Response any

	// ResponseOnly indicates the caller should send Response and
	// re-invoke Decode with the same input — no further decoding of the
	// current message is required first.
	ResponseOnly bool

	// Switch is set on the header-completed result of a request decoder
	// whose request asks for an upgrade a registered provider supports,
	// and of a response decoder that decoded a 101 response the provider
	// accepted; see DATA MODEL.
	Switch *Switch
}

// EncodeResult is the encoder subtype of Result (§3 DATA MODEL).
type EncodeResult struct {
	Result

	// Switch is not set by httpcodec.Encoder: on the server side the
	// switch comes from the request decoder's result, and ServerEngine
	// applies it once the 101 response has been fully encoded.
	Switch *Switch
}
