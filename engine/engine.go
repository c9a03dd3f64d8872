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

// Package engine is the dispatcher (C6) binding one connection's
// decoder and encoder together and performing the atomic codec swap
// on a successful Upgrade (§4.5): a ServerEngine decodes requests and
// encodes responses, a ClientEngine encodes requests and decodes
// responses. Both hold a sync.Mutex rather than an atomic.Value
// because a switch touches two fields (decoder and encoder) that must
// become visible together.
package engine

import (
	"fmt"
	"sync"

	"github.com/packetd/httpcodec"
	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/internal/codecmetrics"
	"github.com/packetd/httpcodec/result"
	"github.com/packetd/httpcodec/wscodec"
)

// ServerEngine dispatches one server-side connection's request
// decoding and response encoding, switching both to the WebSocket
// frame codec once a 101 response the application sent completes.
type ServerEngine struct {
	mu sync.Mutex

	cfg httpcodec.Config

	requestDecoder  *httpcodec.Decoder
	responseEncoder *httpcodec.Encoder

	wsDecoder *wscodec.Decoder
	wsEncoder *wscodec.Encoder

	protocol string // "" until switched

	pendingSwitch   *result.Switch
	pendingRequest  *httpcodec.Request
	lastRespStatus  int

	metrics *codecmetrics.Metrics
}

// SetMetrics attaches m so subsequent Decode/Encode/switch calls record
// against it; passing nil (the default) disables metrics emission.
func (e *ServerEngine) SetMetrics(m *codecmetrics.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// NewServerEngine wires a request decoder and response encoder sharing cfg.
func NewServerEngine(cfg httpcodec.Config) *ServerEngine {
	dec := httpcodec.NewRequestDecoder(cfg)
	enc := httpcodec.NewResponseEncoder(cfg)
	enc.SetPeerDecoder(dec)
	return &ServerEngine{cfg: cfg, requestDecoder: dec, responseEncoder: enc}
}

// CurrentProtocol returns "" for plain HTTP, or the switched-to
// protocol name (e.g. "websocket") once a protocol switch has been applied.
func (e *ServerEngine) CurrentProtocol() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocol
}

// DecodeRequest decodes the next request while still on HTTP. Once
// CurrentProtocol is non-empty, use DecodeFrame instead.
func (e *ServerEngine) DecodeRequest(in, out *buffer.Bytes, endOfInput bool) (result.DecodeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.protocol != "" {
		return result.DecodeResult{}, fmt.Errorf("engine: connection switched to %s", e.protocol)
	}
	dr, err := e.requestDecoder.Decode(in, out, endOfInput)
	if err == nil && dr.Switch != nil {
		if req, ok := e.requestDecoder.Header().(*httpcodec.Request); ok {
			e.pendingSwitch = dr.Switch
			e.pendingRequest = req
		}
	}
	e.recordDecode(dr, err)
	return dr, err
}

func (e *ServerEngine) recordDecode(dr result.DecodeResult, err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
	case dr.Overflow:
		e.metrics.Overflows.WithLabelValues("decode").Inc()
	case dr.Underflow:
		e.metrics.Underflows.WithLabelValues("decode").Inc()
	case !dr.HeaderCompleted:
		e.metrics.MessagesDecoded.WithLabelValues("request").Inc()
	}
}

func (e *ServerEngine) recordEncode(res result.EncodeResult, err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
	case res.Overflow:
		e.metrics.Overflows.WithLabelValues("encode").Inc()
	case res.Underflow:
		e.metrics.Underflows.WithLabelValues("encode").Inc()
	default:
		e.metrics.MessagesEncoded.WithLabelValues("response").Inc()
	}
}

// PendingUpgrade reports the protocol name a just-decoded request
// asked to switch to, if any — the application consults this to
// decide whether to accept (by sending a 101 response prepared via
// PrepareUpgradeResponse) or reject (any other status).
func (e *ServerEngine) PendingUpgrade() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingSwitch == nil {
		return "", false
	}
	return e.pendingSwitch.Protocol, true
}

// PrepareUpgradeResponse augments rsp with the handshake headers
// (§4.2.3) required to accept the pending upgrade.
func (e *ServerEngine) PrepareUpgradeResponse(rsp *httpcodec.Response) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingSwitch == nil {
		return fmt.Errorf("engine: no pending upgrade")
	}
	provider, ok := e.cfg.Upgrades.Lookup(e.pendingSwitch.Protocol)
	if !ok {
		return fmt.Errorf("engine: no provider for %s", e.pendingSwitch.Protocol)
	}
	if err := provider.AugmentInitialResponse(e.pendingRequest, rsp); err != nil {
		rsp.StatusCode = 400
		rsp.Reason = "Bad Request"
		return err
	}
	return nil
}

// BeginResponse starts serializing rsp on the (still-HTTP) response encoder.
func (e *ServerEngine) BeginResponse(rsp *httpcodec.Response) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastRespStatus = rsp.StatusCode
	return e.responseEncoder.BeginResponse(rsp)
}

// EncodeResponse drains the response encoder. Once it completes a 101
// response with a pending switch, both directions swap to the
// WebSocket frame codec before this call returns (§4.5's "switched-to"
// event fires exactly once, in lockstep with the bytes actually sent).
func (e *ServerEngine) EncodeResponse(body, out *buffer.Bytes, endOfBody bool) (result.EncodeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, err := e.responseEncoder.Encode(body, out, endOfBody)
	if err == nil && !res.Overflow && !res.Underflow && e.lastRespStatus == 101 && e.pendingSwitch != nil {
		e.applySwitchLocked()
	}
	e.recordEncode(res, err)
	return res, err
}

func (e *ServerEngine) applySwitchLocked() {
	sw := e.pendingSwitch
	if wd, ok := sw.NewDecoder.(*wscodec.Decoder); ok {
		e.wsDecoder = wd
	}
	if we, ok := sw.NewEncoder.(*wscodec.Encoder); ok {
		e.wsEncoder = we
	}
	e.protocol = sw.Protocol
	e.pendingSwitch = nil
	e.pendingRequest = nil
	if e.metrics != nil {
		e.metrics.ProtocolSwitches.WithLabelValues(sw.Protocol).Inc()
	}
}

// DecodeFrame decodes the next WebSocket frame, valid once CurrentProtocol is non-empty.
func (e *ServerEngine) DecodeFrame(in, out *buffer.Bytes) (wscodec.FrameResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wsDecoder == nil {
		return wscodec.FrameResult{}, fmt.Errorf("engine: not switched to a frame codec")
	}
	return e.wsDecoder.Decode(in, out)
}

// WriteFrame writes the next WebSocket frame, valid once CurrentProtocol is non-empty.
func (e *ServerEngine) WriteFrame(fin bool, opcode wscodec.Opcode, payload, out *buffer.Bytes) (result.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wsEncoder == nil {
		return result.Result{}, fmt.Errorf("engine: not switched to a frame codec")
	}
	return e.wsEncoder.WriteFrame(fin, opcode, payload, out)
}

// ClientEngine dispatches one client-side connection's request
// encoding and response decoding.
type ClientEngine struct {
	mu sync.Mutex

	cfg httpcodec.Config

	requestEncoder  *httpcodec.Encoder
	responseDecoder *httpcodec.Decoder

	wsDecoder *wscodec.Decoder
	wsEncoder *wscodec.Encoder

	protocol string

	metrics *codecmetrics.Metrics
}

// NewClientEngine wires a request encoder and response decoder sharing cfg.
func NewClientEngine(cfg httpcodec.Config) *ClientEngine {
	enc := httpcodec.NewRequestEncoder(cfg)
	dec := httpcodec.NewResponseDecoder(cfg)
	dec.SetPeerEncoder(enc)
	return &ClientEngine{cfg: cfg, requestEncoder: enc, responseDecoder: dec}
}

// SetMetrics attaches m so subsequent Decode/Encode/switch calls record
// against it; passing nil (the default) disables metrics emission.
func (e *ClientEngine) SetMetrics(m *codecmetrics.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

func (e *ClientEngine) CurrentProtocol() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocol
}

// BeginRequest starts serializing req, using upgrade.Provider hooks to
// add handshake headers when wantProtocol names one registered with cfg.Upgrades.
func (e *ClientEngine) BeginRequest(req *httpcodec.Request, wantProtocol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if wantProtocol != "" {
		if provider, ok := e.cfg.Upgrades.Lookup(wantProtocol); ok {
			if err := provider.AugmentInitialRequest(req); err != nil {
				return err
			}
		}
	}
	return e.requestEncoder.BeginRequest(req)
}

func (e *ClientEngine) EncodeRequest(body, out *buffer.Bytes, endOfBody bool) (result.EncodeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, err := e.requestEncoder.Encode(body, out, endOfBody)
	e.recordEncode(res, err)
	return res, err
}

func (e *ClientEngine) recordDecode(dr result.DecodeResult, err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
	case dr.Overflow:
		e.metrics.Overflows.WithLabelValues("decode").Inc()
	case dr.Underflow:
		e.metrics.Underflows.WithLabelValues("decode").Inc()
	case !dr.HeaderCompleted:
		e.metrics.MessagesDecoded.WithLabelValues("response").Inc()
	}
}

func (e *ClientEngine) recordEncode(res result.EncodeResult, err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
	case res.Overflow:
		e.metrics.Overflows.WithLabelValues("encode").Inc()
	case res.Underflow:
		e.metrics.Underflows.WithLabelValues("encode").Inc()
	default:
		e.metrics.MessagesEncoded.WithLabelValues("request").Inc()
	}
}

// DecodeResponse decodes the next response. When it is a validated 101
// switching response, both directions swap to the WebSocket frame codec
// before this call returns.
func (e *ClientEngine) DecodeResponse(in, out *buffer.Bytes, endOfInput bool) (result.DecodeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.protocol != "" {
		return result.DecodeResult{}, fmt.Errorf("engine: connection switched to %s", e.protocol)
	}
	dr, err := e.responseDecoder.Decode(in, out, endOfInput)
	if err == nil && dr.Switch != nil {
		if wd, ok := dr.Switch.NewDecoder.(*wscodec.Decoder); ok {
			e.wsDecoder = wd
		}
		if we, ok := dr.Switch.NewEncoder.(*wscodec.Encoder); ok {
			e.wsEncoder = we
		}
		e.protocol = dr.Switch.Protocol
		if e.metrics != nil {
			e.metrics.ProtocolSwitches.WithLabelValues(e.protocol).Inc()
		}
	}
	e.recordDecode(dr, err)
	return dr, err
}

func (e *ClientEngine) DecodeFrame(in, out *buffer.Bytes) (wscodec.FrameResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wsDecoder == nil {
		return wscodec.FrameResult{}, fmt.Errorf("engine: not switched to a frame codec")
	}
	return e.wsDecoder.Decode(in, out)
}

func (e *ClientEngine) WriteFrame(fin bool, opcode wscodec.Opcode, payload, out *buffer.Bytes) (result.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.wsEncoder == nil {
		return result.Result{}, fmt.Errorf("engine: not switched to a frame codec")
	}
	return e.wsEncoder.WriteFrame(fin, opcode, payload, out)
}
