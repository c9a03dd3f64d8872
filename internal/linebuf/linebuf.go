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

// Package linebuf is the growing byte accumulator of C1, adapted from the
// teacher's internal/bufbytes.Bytes (a capped accumulator) and
// internal/splitio.Scanner (CRLF line splitting). Unlike the teacher's
// scanner, which splits a single fully-buffered block, Reader here
// accumulates across many Feed calls so a header line may be split
// across any number of decode() invocations.
package linebuf

import (
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/httpcodec/result"
)

var pool bytebufferpool.Pool

// Reader accumulates bytes up to a line terminator (CRLF), validating
// that every CR is immediately followed by LF (AWAIT-LINE-END in §4.1.1;
// a bare CR is a protocol error).
type Reader struct {
	buf       *bytebufferpool.ByteBuffer
	maxLen    int
	total     int // cumulative bytes across all lines of the current header block
	version   string
	pendingCR bool
}

// New returns a Reader bounded by maxLen total accumulated bytes
// (max-header-length, default 4 MiB per §6).
func New(maxLen int, version string) *Reader {
	return &Reader{buf: pool.Get(), maxLen: maxLen, version: version}
}

// Release returns the backing buffer to the pool. Call once the Reader
// is no longer needed (message complete, or decoder Closed).
func (r *Reader) Release() {
	pool.Put(r.buf)
	r.buf = nil
}

// Feed consumes bytes from p until a full CRLF-terminated line has been
// accumulated or p is exhausted. It returns how many bytes of p were
// consumed, the completed line (including the trailing CRLF) when ok is
// true, and a framing error if a bare CR (not followed by LF) or a
// length-exceeded condition is observed.
func (r *Reader) Feed(p []byte) (consumed int, line []byte, ok bool, err error) {
	for i, b := range p {
		if r.pendingCR {
			if b != '\n' {
				return i, nil, false, result.Framingf(r.version, "bare CR in header line")
			}
			r.pendingCR = false
			if werr := r.write(b); werr != nil {
				return i + 1, nil, false, werr
			}
			return i + 1, r.buf.Bytes(), true, nil
		}

		if b == '\r' {
			r.pendingCR = true
			if werr := r.write(b); werr != nil {
				return i + 1, nil, false, werr
			}
			continue
		}

		if werr := r.write(b); werr != nil {
			return i + 1, nil, false, werr
		}
	}
	return len(p), nil, false, nil
}

func (r *Reader) write(b byte) error {
	if r.total+1 > r.maxLen {
		return result.Policyf(r.version, 413, "Request Header Fields Too Large",
			"accumulated header length exceeds max-header-length (%d bytes)", r.maxLen)
	}
	r.total++
	return r.buf.WriteByte(b)
}

// Reset clears the accumulated line for the next one, retaining the
// pooled backing array. The cumulative max-header-length budget carries
// over — it bounds the whole header block, not a single line.
func (r *Reader) Reset() {
	r.buf.Reset()
	r.pendingCR = false
}

// ResetTotal clears the cumulative max-header-length budget, for reuse
// across an entirely new message (keep-alive re-entry into
// AWAIT-MESSAGE-START).
func (r *Reader) ResetTotal() { r.total = 0 }

// Len reports the number of bytes accumulated in the current line.
func (r *Reader) Len() int { return r.buf.Len() }
