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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramingfBuildsBadRequest(t *testing.T) {
	err := Framingf("HTTP/1.1", "bad thing %d", 42)
	assert.Equal(t, KindFraming, err.Kind)
	assert.Equal(t, 400, err.StatusCode)
	assert.Contains(t, err.Error(), "bad thing 42")
}

func TestPolicyfCarriesStatus(t *testing.T) {
	err := Policyf("HTTP/1.1", 501, "Not Implemented", "unsupported coding %v", []string{"gzip"})
	assert.Equal(t, KindPolicy, err.Kind)
	assert.Equal(t, 501, err.StatusCode)
}

func TestNewErrorWrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError(KindConverter, "HTTP/1.1", 400, "Bad Request", "bad field", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "underlying")
}
