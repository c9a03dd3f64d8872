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
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/packetd/httpcodec"
	"github.com/packetd/httpcodec/header"
	"github.com/packetd/httpcodec/logger"
	"github.com/packetd/httpcodec/upgrade"
)

// handshakeGUID is the fixed magic string RFC 6455 §1.3 concatenates
// with Sec-WebSocket-Key before hashing.
const handshakeGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Provider implements upgrade.Provider for the "websocket" protocol.
type Provider struct {
	logger logger.Logger
}

// NewProvider returns a websocket upgrade.Provider.
func NewProvider(log logger.Logger) *Provider {
	return &Provider{logger: log.Named("wscodec.provider")}
}

// Register installs a websocket Provider into reg.
func Register(reg *upgrade.Registry, log logger.Logger) {
	reg.Register(NewProvider(log))
}

func (p *Provider) SupportsProtocol(name string) bool {
	return strings.EqualFold(name, "websocket")
}

// AugmentInitialRequest adds the client-side handshake headers.
func (p *Provider) AugmentInitialRequest(request any) error {
	req, ok := request.(*httpcodec.Request)
	if !ok {
		return fmt.Errorf("wscodec: unexpected request type %T", request)
	}
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	req.Fields.SetTyped("Upgrade", header.DirectiveList{"websocket"})
	req.Fields.SetTyped("Connection", header.DirectiveList{"Upgrade"})
	req.Fields.SetString("Sec-WebSocket-Key", base64.StdEncoding.EncodeToString(key))
	req.Fields.SetString("Sec-WebSocket-Version", "13")
	return nil
}

// AugmentInitialResponse validates the handshake request server-side
// and sets the 101 response's headers (§4.2.3 demotes to 400 on error).
func (p *Provider) AugmentInitialResponse(request, response any) error {
	req, ok := request.(*httpcodec.Request)
	if !ok {
		return fmt.Errorf("wscodec: unexpected request type %T", request)
	}
	rsp, ok := response.(*httpcodec.Response)
	if !ok {
		return fmt.Errorf("wscodec: unexpected response type %T", response)
	}
	key, ok := req.Fields.Get("Sec-WebSocket-Key")
	if !ok || key == "" {
		return fmt.Errorf("wscodec: missing Sec-WebSocket-Key")
	}
	if version, ok := req.Fields.Get("Sec-WebSocket-Version"); !ok || version != "13" {
		return fmt.Errorf("wscodec: unsupported Sec-WebSocket-Version %q", version)
	}
	rsp.StatusCode = 101
	rsp.Reason = "Switching Protocols"
	rsp.Fields.SetTyped("Upgrade", header.DirectiveList{"websocket"})
	rsp.Fields.SetTyped("Connection", header.DirectiveList{"Upgrade"})
	rsp.Fields.SetString("Sec-WebSocket-Accept", acceptDigest(key))
	return nil
}

// CheckSwitchingResponse verifies the server's handshake response
// client-side.
func (p *Provider) CheckSwitchingResponse(request, response any) error {
	req, ok := request.(*httpcodec.Request)
	if !ok {
		return fmt.Errorf("wscodec: unexpected request type %T", request)
	}
	rsp, ok := response.(*httpcodec.Response)
	if !ok {
		return fmt.Errorf("wscodec: unexpected response type %T", response)
	}
	key, ok := req.Fields.Get("Sec-WebSocket-Key")
	if !ok {
		return fmt.Errorf("wscodec: request carries no Sec-WebSocket-Key")
	}
	accept, ok := rsp.Fields.Get("Sec-WebSocket-Accept")
	if !ok || accept != acceptDigest(key) {
		return fmt.Errorf("wscodec: Sec-WebSocket-Accept mismatch")
	}
	return nil
}

func acceptDigest(key string) string {
	sum := sha1.Sum([]byte(key + handshakeGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// CreateRequestEncoder/Decoder are used client-side after the switch:
// the client masks frames it sends and expects unmasked frames back.
func (p *Provider) CreateRequestEncoder(name string) (any, error) {
	return NewEncoder(true, p.logger), nil
}

func (p *Provider) CreateRequestDecoder(name string) (any, error) {
	return NewDecoder(false, p.logger), nil
}

// CreateResponseEncoder/Decoder are used server-side after the switch:
// the server never masks and requires masked frames from the client.
func (p *Provider) CreateResponseEncoder(name string) (any, error) {
	return NewEncoder(false, p.logger), nil
}

func (p *Provider) CreateResponseDecoder(name string) (any, error) {
	return NewDecoder(true, p.logger), nil
}
