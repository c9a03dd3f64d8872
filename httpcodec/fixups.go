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
	"github.com/packetd/httpcodec/internal/charutil"
	"github.com/packetd/httpcodec/result"
)

// completeRequestHeader implements §4.1.7's server-side fixups: Host
// requirement on HTTP/1.1, body-mode decision, and upgrade detection.
func (d *Decoder) completeRequestHeader() (result.DecodeResult, bool, error) {
	req := d.req

	if req.Header.Version == "HTTP/1.1" {
		host, ok := req.Fields.Get("Host")
		if !ok || host == "" {
			return result.DecodeResult{}, false, result.Framingf(req.Header.Version, "missing Host header on HTTP/1.1 request")
		}
		req.Host, req.Port = splitHostPort(host)
	} else if host, ok := req.Fields.Get("Host"); ok {
		req.Host, req.Port = splitHostPort(host)
	}

	mode, remaining, err := decideRequestBodyMode(req)
	if err != nil {
		return result.DecodeResult{}, false, err
	}
	d.bodyMode = mode
	d.remaining = remaining
	req.HasPayload = mode != bodyNone

	req.PreparedResponse = NewResponse(req.Header.Version, 200, "OK")
	if connectionHasToken(req.Fields, "close") {
		req.PreparedResponse.Fields.SetTyped("Connection", header.DirectiveList{"close"})
		d.closeAfter = true
	}

	d.prepareCharDecoder(req.Fields)
	d.state = stateBody
	d.lastHeader = req

	dr := result.DecodeResult{Result: result.Result{}, HeaderCompleted: true}
	if name, ok := upgradeToken(req.Fields); ok {
		if provider, ok := d.cfg.Upgrades.Lookup(name); ok {
			dr.Switch = d.prepareRequestUpgrade(provider, name, req)
		}
	}
	return dr, true, nil
}

// completeResponseHeader implements §4.1.6's client-side fixups.
func (d *Decoder) completeResponseHeader() (result.DecodeResult, bool, error) {
	rsp := d.rsp

	if err := fixupRetryAfter(rsp.Fields, d.cfg.Clock.Now()); err != nil {
		return result.DecodeResult{}, false, err
	}

	mode, remaining, err := decideResponseBodyMode(rsp)
	if err != nil {
		return result.DecodeResult{}, false, err
	}
	d.bodyMode = mode
	d.remaining = remaining
	rsp.HasPayload = mode != bodyNone
	d.closeAfter = connectionHasToken(rsp.Fields, "close")

	d.prepareCharDecoder(rsp.Fields)
	d.state = stateBody
	d.lastHeader = rsp

	dr := result.DecodeResult{Result: result.Result{}, HeaderCompleted: true}
	if rsp.StatusCode == 101 {
		if name, ok := upgradeToken(rsp.Fields); ok {
			if provider, ok := d.cfg.Upgrades.Lookup(name); ok {
				if rsp.OriginatingRequest != nil {
					if err := provider.CheckSwitchingResponse(rsp.OriginatingRequest, rsp); err != nil {
						return result.DecodeResult{}, false, result.NewError(result.KindUpgrade, d.version, 0, "", "switching response rejected", err)
					}
				}
				dr.Switch = d.prepareResponseUpgrade(provider, name)
			}
		}
	}
	return dr, true, nil
}

func (d *Decoder) prepareCharDecoder(fields *header.Fields) {
	d.charDecoder = nil
	if !d.cfg.TranscodeBody {
		return
	}
	mt, ok := fields.Typed("Content-Type")
	if !ok {
		return
	}
	media, ok := mt.(header.MediaType)
	if !ok {
		return
	}
	charset := media.Params["charset"]
	if charset == "" {
		return
	}
	if dec, err := charutil.Lookup(charset); err == nil {
		d.charDecoder = dec
	}
}

func (d *Decoder) prepareRequestUpgrade(provider interface {
	CreateResponseEncoder(string) (any, error)
	CreateResponseDecoder(string) (any, error)
}, name string, req *Request) *result.Switch {
	dec, err := provider.CreateResponseDecoder(name)
	if err != nil {
		return nil
	}
	enc, err := provider.CreateResponseEncoder(name)
	if err != nil {
		return nil
	}
	return &result.Switch{Protocol: name, NewDecoder: dec, NewEncoder: enc}
}

func (d *Decoder) prepareResponseUpgrade(provider interface {
	CreateRequestDecoder(string) (any, error)
	CreateRequestEncoder(string) (any, error)
}, name string) *result.Switch {
	dec, err := provider.CreateRequestDecoder(name)
	if err != nil {
		return nil
	}
	enc, err := provider.CreateRequestEncoder(name)
	if err != nil {
		return nil
	}
	return &result.Switch{Protocol: name, NewDecoder: dec, NewEncoder: enc}
}

func splitHostPort(host string) (string, string) {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i+1:], "]") {
		return host[:i], host[i+1:]
	}
	return host, ""
}

func connectionHasToken(fields *header.Fields, token string) bool {
	typed, ok := fields.Typed("Connection")
	if !ok {
		return false
	}
	tokens, _ := typed.(header.DirectiveList)
	for _, t := range tokens {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

func upgradeToken(fields *header.Fields) (string, bool) {
	if !connectionHasToken(fields, "upgrade") {
		return "", false
	}
	typed, ok := fields.Typed("Upgrade")
	if !ok {
		return "", false
	}
	tokens, _ := typed.(header.DirectiveList)
	if len(tokens) == 0 {
		return "", false
	}
	return strings.ToLower(tokens[0]), true
}

// fixupRetryAfter implements §4.1.6: a Retry-After given in delta-seconds
// form is rewritten in place to an absolute instant, computed as Date
// (or now, if Date is absent) plus the delta. An HTTP-date form is left
// untouched. The registry stores the field untyped (String) since a
// strict Date converter would reject the numeric form.
func fixupRetryAfter(fields *header.Fields, now time.Time) error {
	raw, ok := fields.Get("Retry-After")
	if !ok {
		return nil
	}
	delta, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil // HTTP-date form (or unparseable), left as-is
	}

	base := now
	if dateRaw, ok := fields.Get("Date"); ok {
		if t, err := header.Date.FromFieldValue(dateRaw); err == nil {
			base, _ = t.(time.Time)
		}
	}

	absolute := base.Add(time.Duration(delta) * time.Second)
	rewritten, err := header.Date.AsFieldValue(absolute)
	if err != nil {
		return nil
	}
	return fields.Replace("Retry-After", rewritten)
}

// decideRequestBodyMode implements §4.1.3 for requests.
func decideRequestBodyMode(req *Request) (bodyMode, int64, error) {
	if typed, ok := req.Fields.Typed("Transfer-Encoding"); ok {
		codings, _ := typed.(header.DirectiveList)
		if len(codings) == 0 || !strings.EqualFold(codings[len(codings)-1], "chunked") {
			return bodyNone, 0, result.Policyf(req.Header.Version, 501, "Not Implemented", "unsupported transfer coding %v", codings)
		}
		return bodyChunked, 0, nil
	}
	if typed, ok := req.Fields.Typed("Content-Length"); ok {
		n, _ := typed.(int64)
		if n < 0 {
			return bodyNone, 0, result.Framingf(req.Header.Version, "negative Content-Length")
		}
		if n == 0 {
			return bodyNone, 0, nil
		}
		return bodyLength, n, nil
	}
	return bodyNone, 0, nil
}

// decideResponseBodyMode implements §4.1.3 for responses, consulting
// the method that elicited the response where framing is ambiguous.
func decideResponseBodyMode(rsp *Response) (bodyMode, int64, error) {
	method := ""
	if rsp.OriginatingRequest != nil {
		method = strings.ToUpper(rsp.OriginatingRequest.Method)
	}
	switch {
	case method == "HEAD":
		return bodyNone, 0, nil
	case rsp.StatusCode/100 == 1, rsp.StatusCode == 204, rsp.StatusCode == 304:
		return bodyNone, 0, nil
	case method == "CONNECT" && rsp.StatusCode/100 == 2:
		return bodyNone, 0, nil
	}

	if typed, ok := rsp.Fields.Typed("Transfer-Encoding"); ok {
		codings, _ := typed.(header.DirectiveList)
		if len(codings) > 0 && strings.EqualFold(codings[len(codings)-1], "chunked") {
			return bodyChunked, 0, nil
		}
		return bodyUntilClose, 0, nil
	}
	if typed, ok := rsp.Fields.Typed("Content-Length"); ok {
		n, _ := typed.(int64)
		if n < 0 {
			return bodyNone, 0, result.Framingf(rsp.Header.Version, "negative Content-Length")
		}
		if n == 0 {
			return bodyNone, 0, nil
		}
		return bodyLength, n, nil
	}
	return bodyUntilClose, 0, nil
}

// synthesizeErrorResponse implements §4.1.7's response-only error path:
// a framing or policy violation on the request side produces a
// best-effort response instead of silently dropping the connection.
func synthesizeErrorResponse(version string, err error) *Response {
	status, reason := 400, "Bad Request"
	if ce, ok := err.(*result.Error); ok && ce.StatusCode != 0 {
		status, reason = ce.StatusCode, ce.ReasonPhrase
	}
	if version == "" {
		version = "HTTP/1.1"
	}
	rsp := NewResponse(version, status, reason)
	rsp.Fields.SetTyped("Connection", header.DirectiveList{"close"})
	rsp.Fields.SetTyped("Content-Length", int64(0))
	return rsp
}
