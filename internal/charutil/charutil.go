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

// Package charutil is the incremental charset decoder of C1: it carries
// partial multi-byte sequences across buffer edges instead of requiring
// a complete body in memory before transcoding a single byte.
package charutil

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Decoder wraps a golang.org/x/text/transform.Transformer bound to one
// wire charset, decoding bytes into UTF-8 piecewise. Decode may be called
// repeatedly across decode() invocations; a trailing incomplete
// sequence is left unconsumed in src (see Decode) so the caller can
// present it again together with the bytes that complete it.
type Decoder struct {
	name string
	tr   transform.Transformer
}

// Lookup resolves name (as found in a Content-Type's charset parameter)
// to a Decoder. An empty name yields the UTF-8 default; a name htmlindex
// does not know returns an error.
func Lookup(name string) (*Decoder, error) {
	if name == "" {
		return NewUTF8(), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "charutil: unknown charset %q", name)
	}
	return &Decoder{name: name, tr: enc.NewDecoder()}, nil
}

// NewUTF8 returns a pass-through decoder for the default charset.
func NewUTF8() *Decoder {
	return &Decoder{name: "utf-8", tr: encoding.Nop.NewDecoder()}
}

// Name reports the charset this decoder was built for.
func (d *Decoder) Name() string { return d.name }

// Decode transcodes src into dst, returning how much of each it
// consumed/produced. atEOF tells the underlying transformer no more
// source bytes are coming (the FINISH-CHARDECODER sub-state of §4.1.1).
//
// transform.ErrShortDst means dst filled before src was exhausted — the
// caller should treat this like encoder/decoder overflow and drain dst.
// transform.ErrShortSrc means src ended mid multi-byte sequence and is
// not atEOF — the caller should treat this like underflow and keep the
// unconsumed tail (src[nSrc:]) to prefix onto the next Decode call.
func (d *Decoder) Decode(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	nDst, nSrc, err = d.tr.Transform(dst, src, atEOF)
	if err == transform.ErrShortDst || err == transform.ErrShortSrc {
		return nDst, nSrc, err
	}
	if err == io.EOF {
		return nDst, nSrc, nil
	}
	return nDst, nSrc, err
}

// Reset clears any pending partial-sequence state, for reuse across
// messages (FLUSH-CHARDECODER followed by a fresh AWAIT-MESSAGE-START).
func (d *Decoder) Reset() { d.tr.Reset() }
