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
	"fmt"
	"strings"
)

type fieldEntry struct {
	canonical string
	conv      Converter
	multi     MultiConverter
	raw       []string
	typed     any
}

// Fields is the case-insensitive name -> typed value mapping of the
// abstract Message header (§3 DATA MODEL), preserving insertion order
// for wire encoding.
type Fields struct {
	order   []uint64
	entries map[uint64]*fieldEntry
}

// NewFields returns an empty header field set.
func NewFields() *Fields {
	return &Fields{entries: make(map[uint64]*fieldEntry)}
}

// Set parses raw (one physical header line's value) via the registered
// converter for name and stores it, normalizing name to its canonical
// spelling (I1). Repeat occurrences of a single-valued field return an
// error (§4.1.2); repeats of a multi-valued field append.
func (f *Fields) Set(name, raw string) error {
	key := hashName(name)
	e, ok := f.entries[key]
	if !ok {
		canonical, conv, multi := Lookup(name)
		e = &fieldEntry{canonical: canonical, conv: conv, multi: multi}
		f.entries[key] = e
		f.order = append(f.order, key)
	}

	if e.multi == nil {
		if len(e.raw) > 0 {
			return fmt.Errorf("header: duplicate single-valued field %q", e.canonical)
		}
		typed, err := e.conv.FromFieldValue(raw)
		if err != nil {
			return err
		}
		e.typed = typed
		e.raw = []string{raw}
		return nil
	}

	item, err := e.multi.ItemConverter().FromFieldValue(raw)
	if err != nil {
		return err
	}
	if e.typed == nil {
		e.typed = e.multi.NewContainer()
	}
	e.typed = e.multi.AppendItem(e.typed, item)
	e.raw = append(e.raw, raw)
	return nil
}

// Replace overwrites the raw value of an existing single-valued field,
// used for RFC 7230 §3.2.4 header line folding where a continuation
// line extends the previous field's value rather than duplicating it.
func (f *Fields) Replace(name, raw string) error {
	key := hashName(name)
	e, ok := f.entries[key]
	if !ok {
		return f.Set(name, raw)
	}
	typed, err := e.conv.FromFieldValue(raw)
	if err != nil {
		return err
	}
	e.typed = typed
	e.raw = []string{raw}
	return nil
}

// SetTyped installs a programmatically constructed typed value
// (encoder/application side), replacing any previous value for name.
func (f *Fields) SetTyped(name string, typed any) error {
	canonical, conv, multi := Lookup(name)
	key := hashName(name)
	raw, err := conv.AsFieldValue(typed)
	if err != nil {
		return err
	}
	f.entries[key] = &fieldEntry{canonical: canonical, conv: conv, multi: multi, typed: typed, raw: []string{raw}}
	if !f.hasOrder(key) {
		f.order = append(f.order, key)
	}
	return nil
}

// SetString is a convenience for fields whose converter is String.
func (f *Fields) SetString(name, value string) error {
	return f.SetTyped(name, value)
}

func (f *Fields) hasOrder(key uint64) bool {
	for _, k := range f.order {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the first raw wire value for name.
func (f *Fields) Get(name string) (string, bool) {
	e, ok := f.entries[hashName(name)]
	if !ok || len(e.raw) == 0 {
		return "", false
	}
	return e.raw[0], true
}

// GetAll returns every raw wire value stored for name, in arrival order.
func (f *Fields) GetAll(name string) []string {
	e, ok := f.entries[hashName(name)]
	if !ok {
		return nil
	}
	return e.raw
}

// Typed returns the converted value for name (a single value, or the
// multi-value container for multi-valued fields).
func (f *Fields) Typed(name string) (any, bool) {
	e, ok := f.entries[hashName(name)]
	if !ok {
		return nil, false
	}
	return e.typed, true
}

// Has reports whether name has been set.
func (f *Fields) Has(name string) bool {
	_, ok := f.entries[hashName(name)]
	return ok
}

// Del removes name entirely.
func (f *Fields) Del(name string) {
	key := hashName(name)
	if _, ok := f.entries[key]; !ok {
		return
	}
	delete(f.entries, key)
	for i, k := range f.order {
		if k == key {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Canonical returns the canonical wire spelling for name.
func (f *Fields) Canonical(name string) string {
	if e, ok := f.entries[hashName(name)]; ok {
		return e.canonical
	}
	return canonicalizeUnknown(name)
}

// WireLines yields (canonical-name, raw-value) pairs in insertion order,
// one per physical header line (§4.9's separate-values is honored: a
// multi-valued field with SeparateValues set yields one pair per raw
// occurrence, the rest yield one pair with the delimiter-joined value).
func (f *Fields) WireLines(yield func(name, value string)) {
	for _, key := range f.order {
		e := f.entries[key]
		if e.multi != nil && e.multi.SeparateValues() {
			for _, raw := range e.raw {
				yield(e.canonical, raw)
			}
			continue
		}
		if e.multi != nil && len(e.raw) > 1 {
			yield(e.canonical, strings.Join(e.raw, string(e.multi.Delimiter())+" "))
			continue
		}
		if len(e.raw) > 0 {
			yield(e.canonical, e.raw[0])
		}
	}
}

// EnforceFramingExclusivity implements invariant I3: at most one of
// Content-Length/Transfer-Encoding, with Content-Length removed on
// conflict (RFC 7230 §3.3.3). Returns true if it made a change.
func (f *Fields) EnforceFramingExclusivity() bool {
	if f.Has("Content-Length") && f.Has("Transfer-Encoding") {
		f.Del("Content-Length")
		return true
	}
	return false
}

// EnsureUpgradeConnection implements invariant I2: setting Upgrade
// ensures the Upgrade token appears in Connection.
func (f *Fields) EnsureUpgradeConnection() error {
	if !f.Has("Upgrade") {
		return nil
	}
	var tokens DirectiveList
	if typed, ok := f.Typed("Connection"); ok {
		tokens, _ = typed.(DirectiveList)
	}
	for _, t := range tokens {
		if strings.EqualFold(t, "Upgrade") {
			return nil
		}
	}
	tokens = append(tokens, "Upgrade")
	return f.SetTyped("Connection", tokens)
}
