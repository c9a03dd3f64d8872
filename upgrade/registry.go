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

// Package upgrade is the upgrade provider registry (C7): a process-wide,
// pluggable lookup from protocol name to the codecs and handshake hooks
// needed to complete an HTTP Upgrade. It has no dependency on the HTTP
// codec types themselves (request/response are passed as `any`) so that
// httpcodec can depend on upgrade without a cycle back from a concrete
// provider such as the WebSocket one in package wscodec.
package upgrade

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Provider describes how to complete the handshake for one upgrade
// target protocol and how to instantiate its post-switch codecs (§4.5).
type Provider interface {
	// SupportsProtocol reports whether this provider handles the named
	// Upgrade token (case-insensitive), e.g. "websocket".
	SupportsProtocol(name string) bool

	// AugmentInitialRequest adds client-side handshake headers to an
	// outgoing request (e.g. Sec-WebSocket-Key/Version).
	AugmentInitialRequest(request any) error

	// AugmentInitialResponse validates the handshake request headers
	// and sets response headers server-side. Returning an error demotes
	// the response to 400 Bad Request (§4.2.3).
	AugmentInitialResponse(request any, response any) error

	// CheckSwitchingResponse verifies, client-side, that the server's
	// 101 response actually accepted the handshake.
	CheckSwitchingResponse(request any, response any) error

	// CreateRequestEncoder/Decoder and CreateResponseEncoder/Decoder
	// instantiate the codecs the engine switches to once the
	// handshake completes.
	CreateRequestEncoder(name string) (any, error)
	CreateRequestDecoder(name string) (any, error)
	CreateResponseEncoder(name string) (any, error)
	CreateResponseDecoder(name string) (any, error)
}

// Registry is the process-wide provider lookup table (§4.5, §5: reads
// during steady state are lock-free-ish via RWMutex and may observe any
// consistent snapshot; registration is rare and serialized).
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry returns an empty registry. DefaultRegistry is the
// process-wide instance; it also starts empty, and wscodec.Register
// installs the WebSocket provider into it or into any other registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds p to the registry. Lookup iterates every call, so
// dynamic registration at runtime is safe (§4.5).
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Lookup returns the first registered provider supporting name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.SupportsProtocol(name) {
			return p, true
		}
	}
	return nil, false
}

// ValidateAll runs a validation func against every registered provider,
// aggregating every failure instead of stopping at the first — useful
// when wiring several providers at startup and wanting one combined
// error report.
func (r *Registry) ValidateAll(validate func(Provider) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result *multierror.Error
	for _, p := range r.providers {
		if err := validate(p); err != nil {
			result = multierror.Append(result, fmt.Errorf("%T: %w", p, err))
		}
	}
	return result.ErrorOrNil()
}

// DefaultRegistry is the process-wide registry instance used when an
// engine is not given one explicitly.
var DefaultRegistry = NewRegistry()
