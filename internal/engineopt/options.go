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

// Package engineopt is the engine's untyped knob bag, adapted from the
// teacher's common.Options map[string]any (common/option.go): a loose
// override source (e.g. unmarshaled YAML) merged onto typed defaults
// via spf13/cast, kept separate from httpcodec.Config so application
// code never has to import the cast/ucfg stack just to construct one.
package engineopt

import "github.com/spf13/cast"

// Options is a loosely typed override bag, the same shape a config
// file or environment layer produces before it is reconciled against
// hard defaults.
type Options map[string]any

// NewOptions returns an empty override bag.
func NewOptions() Options {
	return make(Options)
}

func (o Options) GetInt(k string) (int, error) {
	return cast.ToIntE(o[k])
}

func (o Options) GetBool(k string) (bool, error) {
	return cast.ToBoolE(o[k])
}

func (o Options) GetString(k string) (string, error) {
	return cast.ToStringE(o[k])
}

// Merge sets or overwrites k.
func (o Options) Merge(k string, v any) {
	o[k] = v
}

// Settings is the reconciled, typed form of the engine knobs of §6.
type Settings struct {
	MaxHeaderLength int
	PendingLimit    int
	TranscodeBody   bool
}

// DefaultSettings returns the documented engine knob defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxHeaderLength: 4 << 20,
		PendingLimit:    64 << 10,
		TranscodeBody:   false,
	}
}

// Apply overlays o onto defaults, ignoring keys that are absent or
// fail to cast rather than erroring the whole settings load — an
// individual bad knob should not prevent the engine from starting
// with everything else correctly configured.
func (o Options) Apply(defaults Settings) Settings {
	s := defaults
	if _, present := o["max-header-length"]; present {
		if v, err := o.GetInt("max-header-length"); err == nil {
			s.MaxHeaderLength = v
		}
	}
	if _, present := o["pending-limit"]; present {
		if v, err := o.GetInt("pending-limit"); err == nil {
			s.PendingLimit = v
		}
	}
	if _, present := o["transcode-body"]; present {
		if v, err := o.GetBool("transcode-body"); err == nil {
			s.TranscodeBody = v
		}
	}
	return s
}
