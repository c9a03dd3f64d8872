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

package header

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// entry pairs a field's canonical wire spelling with its converter.
type entry struct {
	canonical string
	conv      Converter
}

// registry replaces the source's reflection-based fromString lookup
// (§9 DESIGN NOTES) with a static table, keyed by the xxhash of the
// lowercased field name rather than the lowercased string itself — the
// same trade the teacher's pack makes elsewhere for hot lookup paths.
var registry = map[uint64]entry{}

func register(canonical string, conv Converter) {
	registry[hashName(canonical)] = entry{canonical: canonical, conv: conv}
}

func hashName(name string) uint64 {
	return xxhash.Sum64String(strings.ToLower(name))
}

func init() {
	register("Host", String)
	register("Content-Length", Int)
	register("Content-Type", MediaTypeConv)
	register("Transfer-Encoding", Directives)
	register("Connection", Directives)
	register("Upgrade", Directives)
	register("Trailer", Directives)
	register("Vary", Directives)
	register("Accept-Encoding", Directives)
	register("Cache-Control", Directives)
	register("Date", Date)
	register("Expires", Date)
	register("Last-Modified", Date)
	register("If-Modified-Since", Date)
	register("If-Unmodified-Since", Date)
	register("Retry-After", String) // mixed delta-seconds/date grammar; see httpcodec fixups
	register("Cookie", CookieList)
	register("Set-Cookie", SetCookieList)
	register("Accept", MediaRanges)
	register("Accept-Language", Languages)
	register("Authorization", CredentialsConv)
	register("WWW-Authenticate", CredentialsConv)
	register("Proxy-Authenticate", CredentialsConv)
	register("Proxy-Authorization", CredentialsConv)
	register("User-Agent", ProductList)
	register("Server", ProductList)
	register("Via", ProductList)
	register("Sec-WebSocket-Key", String)
	register("Sec-WebSocket-Accept", String)
	register("Sec-WebSocket-Version", String)
	register("Sec-WebSocket-Protocol", Directives)
	register("Sec-WebSocket-Extensions", Directives)
	register("Location", String)
	register("Origin", String)
}

// Lookup returns the converter registered for name (case-insensitive)
// and its canonical spelling. Unregistered names fall back to String
// with a title-cased canonical spelling.
func Lookup(name string) (canonical string, conv Converter, multi MultiConverter) {
	if e, ok := registry[hashName(name)]; ok {
		if m, ok := e.conv.(MultiConverter); ok {
			return e.canonical, e.conv, m
		}
		return e.canonical, e.conv, nil
	}
	return canonicalizeUnknown(name), String, nil
}

// canonicalizeUnknown title-cases each hyphen-delimited segment, the
// same normalization net/http's textproto package applies, for fields
// this registry has no typed converter for (I1).
func canonicalizeUnknown(name string) string {
	segs := strings.Split(name, "-")
	for i, s := range segs {
		if s == "" {
			continue
		}
		segs[i] = strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	}
	return strings.Join(segs, "-")
}
