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

	"github.com/packetd/httpcodec"
	"github.com/packetd/httpcodec/logger"
)

func TestHandshakeRoundTrip(t *testing.T) {
	p := NewProvider(logger.Nop())

	req := httpcodec.NewRequest("HTTP/1.1", "GET", "/chat")
	req.Fields.Set("Host", "example.com")
	require.NoError(t, p.AugmentInitialRequest(req))

	key, ok := req.Fields.Get("Sec-WebSocket-Key")
	require.True(t, ok)
	assert.NotEmpty(t, key)

	rsp := httpcodec.NewResponse("HTTP/1.1", 200, "OK")
	require.NoError(t, p.AugmentInitialResponse(req, rsp))
	assert.Equal(t, 101, rsp.StatusCode)

	accept, ok := rsp.Fields.Get("Sec-WebSocket-Accept")
	require.True(t, ok)
	assert.Equal(t, acceptDigest(key), accept)

	require.NoError(t, p.CheckSwitchingResponse(req, rsp))
}

func TestHandshakeRejectsMissingKey(t *testing.T) {
	p := NewProvider(logger.Nop())
	req := httpcodec.NewRequest("HTTP/1.1", "GET", "/chat")
	rsp := httpcodec.NewResponse("HTTP/1.1", 200, "OK")
	err := p.AugmentInitialResponse(req, rsp)
	assert.Error(t, err)
}

func TestHandshakeRejectsTamperedAccept(t *testing.T) {
	p := NewProvider(logger.Nop())
	req := httpcodec.NewRequest("HTTP/1.1", "GET", "/chat")
	req.Fields.SetString("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	rsp := httpcodec.NewResponse("HTTP/1.1", 101, "Switching Protocols")
	rsp.Fields.SetString("Sec-WebSocket-Accept", "wrongvalue")
	err := p.CheckSwitchingResponse(req, rsp)
	assert.Error(t, err)
}

func TestAcceptDigestKnownVector(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", acceptDigest("dGhlIHNhbXBsZSBub25jZQ=="))
}
