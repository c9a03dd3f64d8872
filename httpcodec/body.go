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

	"golang.org/x/text/transform"

	"github.com/packetd/httpcodec/buffer"
	"github.com/packetd/httpcodec/header"
	"github.com/packetd/httpcodec/result"
)

// decodeBody drains one body's worth of bytes from in into out,
// returning done=true once the message (body and any trailer) is
// fully consumed. It never blocks: an empty in or full out yields an
// underflow/overflow result and done=false so the caller resumes later.
func (d *Decoder) decodeBody(in, out *buffer.Bytes, endOfInput bool) (result.DecodeResult, bool, error) {
	switch d.bodyMode {
	case bodyNone:
		return d.finishMessage()
	case bodyLength:
		return d.decodeLengthBody(in, out)
	case bodyChunked:
		return d.decodeChunkedBody(in, out)
	case bodyUntilClose:
		return d.decodeUntilCloseBody(in, out, endOfInput)
	default:
		return d.finishMessage()
	}
}

func (d *Decoder) decodeLengthBody(in, out *buffer.Bytes) (result.DecodeResult, bool, error) {
	for d.remaining > 0 {
		if !in.HasRemaining() {
			return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
		}
		n, overflow, err := d.copyBodyChunk(in, out, d.remaining)
		if err != nil {
			return result.DecodeResult{}, false, err
		}
		d.remaining -= int64(n)
		if overflow {
			return result.DecodeResult{Result: result.Result{Overflow: true}}, false, nil
		}
		if n == 0 {
			return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
		}
	}
	if overflow, err := d.flushCharDecoder(out); err != nil {
		return result.DecodeResult{}, false, err
	} else if overflow {
		return result.DecodeResult{Result: result.Result{Overflow: true}}, false, nil
	}
	return d.finishMessage()
}

func (d *Decoder) decodeUntilCloseBody(in, out *buffer.Bytes, endOfInput bool) (result.DecodeResult, bool, error) {
	if in.HasRemaining() {
		avail := int64(in.Remaining())
		_, overflow, err := d.copyBodyChunk(in, out, avail)
		if err != nil {
			return result.DecodeResult{}, false, err
		}
		if overflow {
			return result.DecodeResult{Result: result.Result{Overflow: true}}, false, nil
		}
	}
	if endOfInput {
		if overflow, err := d.flushCharDecoder(out); err != nil {
			return result.DecodeResult{}, false, err
		} else if overflow {
			return result.DecodeResult{Result: result.Result{Overflow: true}}, false, nil
		}
		d.closeAfter = true
		return d.finishMessage()
	}
	return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
}

// flushCharDecoder drains any bytes a multi-byte charset decoder is
// still holding internally once a body's content is known to be
// complete (§4.1.1's FINISH-CHARDECODER sub-state), by calling Decode
// with an empty source and atEOF=true until it reports nothing more
// pending. It is resumable: if out fills mid-flush, the transformer
// retains its remaining state and the next call continues where this
// one left off.
func (d *Decoder) flushCharDecoder(out *buffer.Bytes) (overflow bool, err error) {
	if d.charDecoder == nil {
		return false, nil
	}
	for {
		if !out.HasRemaining() {
			return true, nil
		}
		nDst, _, terr := d.charDecoder.Decode(out.Unread(), nil, true)
		out.Advance(nDst)
		if terr != nil {
			if nDst == 0 {
				return true, nil
			}
			continue
		}
		return false, nil
	}
}

// copyBodyChunk copies up to want bytes from in to out, optionally
// charset-transcoding, and reports how many input bytes it consumed
// and whether out filled before want bytes were available.
func (d *Decoder) copyBodyChunk(in, out *buffer.Bytes, want int64) (consumed int, overflow bool, err error) {
	n := in.Remaining()
	if int64(n) > want {
		n = int(want)
	}
	if n == 0 {
		return 0, false, nil
	}
	src := in.Unread()[:n]

	if d.charDecoder == nil {
		room := out.Remaining()
		if room == 0 {
			return 0, true, nil
		}
		if room < n {
			n = room
			overflow = true
		}
		written := out.PutSlice(src[:n])
		in.Advance(written)
		return written, overflow, nil
	}

	nDst, nSrc, terr := d.charDecoder.Decode(out.Unread(), src, false)
	// out.Unread() above reads the writable tail only because out's
	// position already marks the write cursor; PutSlice-equivalent
	// advance follows.
	out.Advance(nDst)
	in.Advance(nSrc)
	if terr != nil {
		if terr == transform.ErrShortSrc {
			return nSrc, false, nil
		}
		if nDst == 0 && nSrc == 0 {
			return 0, true, nil
		}
		return nSrc, true, nil
	}
	return nSrc, false, nil
}

func (d *Decoder) finishMessage() (result.DecodeResult, bool, error) {
	return result.DecodeResult{}, true, nil
}

// --- chunked transfer coding (§4.1.4) ---

func (d *Decoder) decodeChunkedBody(in, out *buffer.Bytes) (result.DecodeResult, bool, error) {
	for {
		switch d.chunkPhase {
		case chunkAwaitSizeLine:
			consumed, line, ok, err := d.lineReader.Feed(in.Unread())
			in.Advance(consumed)
			if err != nil {
				return result.DecodeResult{}, false, err
			}
			if !ok {
				return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
			}
			d.lineReader.Reset()
			size, err := parseChunkSizeLine(line)
			if err != nil {
				return result.DecodeResult{}, false, err
			}
			if size == 0 {
				d.chunkPhase = chunkFinishChar
				continue
			}
			d.remaining = size
			d.chunkPhase = chunkCopyData

		case chunkFinishChar:
			if overflow, err := d.flushCharDecoder(out); err != nil {
				return result.DecodeResult{}, false, err
			} else if overflow {
				return result.DecodeResult{Result: result.Result{Overflow: true}}, false, nil
			}
			d.chunkPhase = chunkAwaitTrailerLine

		case chunkCopyData:
			for d.remaining > 0 {
				if !in.HasRemaining() {
					return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
				}
				n, overflow, err := d.copyBodyChunk(in, out, d.remaining)
				if err != nil {
					return result.DecodeResult{}, false, err
				}
				d.remaining -= int64(n)
				if overflow {
					return result.DecodeResult{Result: result.Result{Overflow: true}}, false, nil
				}
				if n == 0 {
					return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
				}
			}
			d.chunkPhase = chunkAwaitDataCRLF

		case chunkAwaitDataCRLF:
			consumed, line, ok, err := d.lineReader.Feed(in.Unread())
			in.Advance(consumed)
			if err != nil {
				return result.DecodeResult{}, false, err
			}
			if !ok {
				return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
			}
			d.lineReader.Reset()
			if !bytes.Equal(line, []byte("\r\n")) {
				return result.DecodeResult{}, false, result.Framingf(d.version, "malformed chunk terminator")
			}
			d.chunkPhase = chunkAwaitSizeLine

		case chunkAwaitTrailerLine:
			consumed, line, ok, err := d.lineReader.Feed(in.Unread())
			in.Advance(consumed)
			if err != nil {
				return result.DecodeResult{}, false, err
			}
			if !ok {
				return result.DecodeResult{Result: result.Result{Underflow: true}}, false, nil
			}
			d.lineReader.Reset()
			if bytes.Equal(line, []byte("\r\n")) || bytes.Equal(line, []byte("\n")) {
				d.appendTrailerNames()
				return d.finishMessage()
			}
			if err := d.parseTrailerLine(line); err != nil {
				return result.DecodeResult{}, false, err
			}
		}
	}
}

func parseChunkSizeLine(line []byte) (int64, error) {
	text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i] // chunk extensions are ignored, not interpreted (§4.1.4)
	}
	text = strings.TrimSpace(text)
	n, err := strconv.ParseInt(text, 16, 64)
	if err != nil || n < 0 {
		return 0, result.Framingf("HTTP/1.1", "malformed chunk size %q", text)
	}
	return n, nil
}

// parseTrailerLine parses one trailer header field, recording its name
// so it can be appended to the Trailer field (RFC 7230 §4.1.2).
func (d *Decoder) parseTrailerLine(line []byte) error {
	fields := d.currentFields()
	text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return result.Framingf(d.version, "malformed trailer line %q", text)
	}
	name := strings.TrimSpace(text[:colon])
	value := strings.TrimSpace(text[colon+1:])
	if err := fields.Set(name, value); err != nil {
		return result.NewError(result.KindConverter, d.version, 400, "Bad Request", err.Error(), err)
	}
	d.trailerNames = append(d.trailerNames, fields.Canonical(name))
	return nil
}

// appendTrailerNames merges the names seen in the trailer into the
// message's Trailer field, per the supplemented behavior of §4.1.4.
func (d *Decoder) appendTrailerNames() {
	if len(d.trailerNames) == 0 {
		return
	}
	fields := d.currentFields()
	existing := header.DirectiveList(nil)
	if typed, ok := fields.Typed("Trailer"); ok {
		existing, _ = typed.(header.DirectiveList)
	}
	existing = append(existing, d.trailerNames...)
	fields.SetTyped("Trailer", existing)
}
