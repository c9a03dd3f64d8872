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
	"strconv"
	"strings"
	"time"

	"github.com/packetd/httpcodec/header"
	"github.com/packetd/httpcodec/result"
)

// decideEncodedBodyMode implements the encoder's own §4.2.1 framing
// decision at header time, distinct from the decoder's §4.1.3
// ambiguity-resolving decision: it consults the payload flag the
// application set on the header rather than inferring one from the
// headers alone, and auto-injects Transfer-Encoding: chunked (or, on
// HTTP/1.0, defers to the §4.2.4 pending-data buffer) rather than ever
// falling back to until-close for a header that declares neither
// framing.
func decideEncodedBodyMode(fields *header.Fields, hasPayload bool, version string) (bodyMode, int64, error) {
	if typed, ok := fields.Typed("Transfer-Encoding"); ok {
		codings, _ := typed.(header.DirectiveList)
		if len(codings) == 0 || !strings.EqualFold(codings[len(codings)-1], "chunked") {
			return bodyNone, 0, result.Policyf(version, 501, "Not Implemented", "unsupported transfer coding %v", codings)
		}
		return bodyChunked, 0, nil
	}
	if typed, ok := fields.Typed("Content-Length"); ok {
		n, _ := typed.(int64)
		if n < 0 {
			return bodyNone, 0, result.Framingf(version, "negative Content-Length")
		}
		return bodyLength, n, nil
	}
	if !hasPayload {
		return bodyNone, 0, nil
	}
	if version == "HTTP/1.0" {
		return bodyPending, 0, nil
	}
	if err := fields.SetTyped("Transfer-Encoding", header.DirectiveList{"chunked"}); err != nil {
		return bodyNone, 0, err
	}
	return bodyChunked, 0, nil
}

// decideEncodedRequestBodyMode implements §4.2.1 for requests.
func decideEncodedRequestBodyMode(req *Request) (bodyMode, int64, error) {
	return decideEncodedBodyMode(req.Fields, req.Header.HasPayload, req.Header.Version)
}

// decideEncodedResponseBodyMode implements §4.2.1 for responses, folding
// in the §4.2.3 forbidden-body statuses (1xx, 204, successful CONNECT)
// ahead of the generic decision, and injecting Content-Length: 0 when
// the generic decision lands on no body but one is required.
func decideEncodedResponseBodyMode(rsp *Response) (bodyMode, int64, error) {
	method := ""
	if rsp.OriginatingRequest != nil {
		method = strings.ToUpper(rsp.OriginatingRequest.Method)
	}

	switch {
	case rsp.StatusCode/100 == 1, rsp.StatusCode == 204, (method == "CONNECT" && rsp.StatusCode/100 == 2):
		rsp.Fields.Del("Content-Length")
		rsp.Fields.Del("Transfer-Encoding")
		return bodyNone, 0, nil
	}

	mode, remaining, err := decideEncodedBodyMode(rsp.Fields, rsp.Header.HasPayload, rsp.Header.Version)
	if err != nil {
		return bodyNone, 0, err
	}
	if mode == bodyNone && method != "HEAD" && rsp.StatusCode != 304 {
		if err := rsp.Fields.SetTyped("Content-Length", int64(0)); err != nil {
			return bodyNone, 0, err
		}
	}
	return mode, remaining, nil
}

// synthesizeExpires implements §4.2.3's Expires synthesis: on HTTP/1.0,
// when Cache-Control carries max-age=N and no Expires is already set,
// Expires is computed as now + N. A malformed max-age is ignored rather
// than propagated as an error (§9 Open Questions).
func synthesizeExpires(fields *header.Fields, version string, now time.Time) error {
	if version != "HTTP/1.0" || fields.Has("Expires") {
		return nil
	}
	typed, ok := fields.Typed("Cache-Control")
	if !ok {
		return nil
	}
	directives, _ := typed.(header.DirectiveList)
	for _, d := range directives {
		rest, ok := strings.CutPrefix(strings.TrimSpace(d), "max-age=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return nil
		}
		return fields.SetTyped("Expires", now.Add(time.Duration(n)*time.Second))
	}
	return nil
}
