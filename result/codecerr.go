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

package result

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a protocol Error per §7 ERROR HANDLING DESIGN.
type Kind uint8

const (
	// KindFraming covers malformed start lines, bad CRLF pairing, and
	// illegal chunk sizes.
	KindFraming Kind = iota
	// KindPolicy covers length-exceeded, conflicting framing headers,
	// and unsupported transfer codings.
	KindPolicy
	// KindUpgrade covers a failed or rejected protocol switch.
	KindUpgrade
	// KindConverter covers a header field converter parse failure.
	KindConverter
)

func (k Kind) String() string {
	switch k {
	case KindFraming:
		return "framing"
	case KindPolicy:
		return "policy"
	case KindUpgrade:
		return "upgrade"
	case KindConverter:
		return "converter"
	default:
		return "unknown"
	}
}

// Error is the typed protocol error every decode/encode failure surfaces
// as (§7): it carries enough to synthesize the wire-level error response
// the state machines emit as a response-only result.
type Error struct {
	Kind            Kind
	ProtocolVersion string
	StatusCode      int
	ReasonPhrase    string
	Detail          string
	cause           error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("httpcodec: %s %d %s: %s: %v", e.Kind, e.StatusCode, e.ReasonPhrase, e.Detail, e.cause)
	}
	return fmt.Sprintf("httpcodec: %s %d %s: %s", e.Kind, e.StatusCode, e.ReasonPhrase, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a protocol Error, wrapping cause with errors.WithStack
// so callers keep a stack trace the way the teacher's decoders do via
// github.com/pkg/errors.
func NewError(kind Kind, version string, status int, reason, detail string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{
		Kind:            kind,
		ProtocolVersion: version,
		StatusCode:      status,
		ReasonPhrase:    reason,
		Detail:          detail,
		cause:           cause,
	}
}

// Framingf builds a KindFraming error with a 400 status, the common case
// for a malformed start line or CRLF violation.
func Framingf(version, format string, args ...any) *Error {
	return NewError(KindFraming, version, 400, "Bad Request", fmt.Sprintf(format, args...), nil)
}

// Policyf builds a KindPolicy error with the given status (413/400/501).
func Policyf(version string, status int, reason, format string, args ...any) *Error {
	return NewError(KindPolicy, version, status, reason, fmt.Sprintf(format, args...), nil)
}
