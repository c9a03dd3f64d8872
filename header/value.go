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

// Package header is the header field converter registry (C2): a static
// mapping from canonical field name to a typed converter, external to
// the HTTP state machines but consumed by them (§4.9).
package header

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Converter is the per-field contract (§4.9): as-field-value/from-field-value.
type Converter interface {
	AsFieldValue(v any) (string, error)
	FromFieldValue(s string) (any, error)
}

// MultiConverter additionally declares how to combine repeated
// occurrences of a multi-valued field into one container value.
type MultiConverter interface {
	Converter
	NewContainer() any
	AppendItem(container any, item any) any
	ItemConverter() Converter
	Delimiter() byte
	// SeparateValues forces one physical header line per item on
	// encode (set for Set-Cookie only, per §4.9).
	SeparateValues() bool
}

// --- string ---

type stringConverter struct{}

func (stringConverter) AsFieldValue(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("header: expected string, got %T", v)
	}
	return s, nil
}

func (stringConverter) FromFieldValue(s string) (any, error) { return s, nil }

// String is the identity converter, the default for unregistered fields.
var String Converter = stringConverter{}

// --- integer ---

type intConverter struct{}

func (intConverter) AsFieldValue(v any) (string, error) {
	n, ok := v.(int64)
	if !ok {
		return "", fmt.Errorf("header: expected int64, got %T", v)
	}
	return strconv.FormatInt(n, 10), nil
}

func (intConverter) FromFieldValue(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("header: invalid integer %q: %w", s, err)
	}
	return n, nil
}

// Int converts Content-Length and similar byte-count fields.
var Int Converter = intConverter{}

// --- date/time, three accepted input formats (§6) ---

const (
	imfFixdate  = "Mon, 02 Jan 2006 15:04:05 GMT"
	rfc850Date  = "Monday, 02-Jan-06 15:04:05 GMT"
	ansiCAsctim = "Mon Jan _2 15:04:05 2006"
)

type dateConverter struct{}

func (dateConverter) AsFieldValue(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("header: expected time.Time, got %T", v)
	}
	return t.UTC().Format(imfFixdate), nil
}

func (dateConverter) FromFieldValue(s string) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range [...]string{imfFixdate, rfc850Date, ansiCAsctim} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("header: unrecognized date format %q", s)
}

// Date converts Date, Expires, Last-Modified, If-Modified-Since and
// similar instant-valued fields. Output is always IMF-fixdate (§6).
var Date Converter = dateConverter{}

// --- directive / token list (Connection, Transfer-Encoding, Upgrade,
// Trailer, Cache-Control, Vary, Accept-Encoding, ...) ---

type DirectiveList []string

type directiveListConverter struct{}

func (directiveListConverter) AsFieldValue(v any) (string, error) {
	items, ok := v.(DirectiveList)
	if !ok {
		return "", fmt.Errorf("header: expected DirectiveList, got %T", v)
	}
	return strings.Join(items, ", "), nil
}

func (directiveListConverter) FromFieldValue(s string) (any, error) {
	parts := strings.Split(s, ",")
	out := make(DirectiveList, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (directiveListConverter) NewContainer() any { return DirectiveList(nil) }

func (c directiveListConverter) AppendItem(container any, item any) any {
	list, _ := container.(DirectiveList)
	items, _ := item.(DirectiveList)
	return append(list, items...)
}

func (directiveListConverter) ItemConverter() Converter { return directiveListConverter{} }
func (directiveListConverter) Delimiter() byte          { return ',' }
func (directiveListConverter) SeparateValues() bool     { return false }

// Directives converts a comma-delimited token list.
var Directives MultiConverter = directiveListConverter{}

// --- media type (Content-Type) ---

type MediaType struct {
	Type, Subtype string
	Params        map[string]string
}

func (m MediaType) String() string {
	var b strings.Builder
	b.WriteString(m.Type)
	b.WriteByte('/')
	b.WriteString(m.Subtype)
	for k, v := range m.Params {
		b.WriteString("; ")
		b.WriteString(k)
		b.WriteByte('=')
		if strings.ContainsAny(v, " ;,") {
			b.WriteByte('"')
			b.WriteString(v)
			b.WriteByte('"')
		} else {
			b.WriteString(v)
		}
	}
	return b.String()
}

func parseMediaTypeLike(s string) (typ, subtype string, params map[string]string, err error) {
	parts := strings.Split(s, ";")
	typeParts := strings.SplitN(strings.TrimSpace(parts[0]), "/", 2)
	if len(typeParts) != 2 || typeParts[0] == "" || typeParts[1] == "" {
		return "", "", nil, fmt.Errorf("header: malformed media type %q", s)
	}
	params = make(map[string]string)
	for _, p := range parts[1:] {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) != 2 {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.Trim(strings.TrimSpace(kv[1]), `"`)
	}
	return strings.ToLower(typeParts[0]), strings.ToLower(typeParts[1]), params, nil
}

type mediaTypeConverter struct{}

func (mediaTypeConverter) AsFieldValue(v any) (string, error) {
	mt, ok := v.(MediaType)
	if !ok {
		return "", fmt.Errorf("header: expected MediaType, got %T", v)
	}
	return mt.String(), nil
}

func (mediaTypeConverter) FromFieldValue(s string) (any, error) {
	typ, subtype, params, err := parseMediaTypeLike(s)
	if err != nil {
		return nil, err
	}
	return MediaType{Type: typ, Subtype: subtype, Params: params}, nil
}

// MediaTypeConv converts Content-Type.
var MediaTypeConv Converter = mediaTypeConverter{}

// --- media range (Accept), a comma-separated list of quality-weighted
// media types ---

type MediaRange struct {
	MediaType
	Q float64
}

type mediaRangeConverter struct{}

func (mediaRangeConverter) AsFieldValue(v any) (string, error) {
	mr, ok := v.(MediaRange)
	if !ok {
		return "", fmt.Errorf("header: expected MediaRange, got %T", v)
	}
	s := mr.MediaType.String()
	if mr.Q != 0 && mr.Q != 1 {
		s += fmt.Sprintf("; q=%.3g", mr.Q)
	}
	return s, nil
}

func (mediaRangeConverter) FromFieldValue(s string) (any, error) {
	typ, subtype, params, err := parseMediaTypeLike(s)
	if err != nil {
		return nil, err
	}
	q := 1.0
	if raw, ok := params["q"]; ok {
		if parsed, perr := strconv.ParseFloat(raw, 64); perr == nil {
			q = parsed
		}
		delete(params, "q")
	}
	return MediaRange{MediaType: MediaType{Type: typ, Subtype: subtype, Params: params}, Q: q}, nil
}

func (mediaRangeConverter) NewContainer() any { return []MediaRange(nil) }

func (c mediaRangeConverter) AppendItem(container any, item any) any {
	list, _ := container.([]MediaRange)
	mr, _ := item.(MediaRange)
	return append(list, mr)
}

func (mediaRangeConverter) ItemConverter() Converter { return mediaRangeConverter{} }
func (mediaRangeConverter) Delimiter() byte          { return ',' }
func (mediaRangeConverter) SeparateValues() bool     { return false }

// MediaRanges converts Accept.
var MediaRanges MultiConverter = mediaRangeConverter{}

// --- language range (Accept-Language) ---

type LanguageRange struct {
	Tag string
	Q   float64
}

type languageConverter struct{}

func (languageConverter) AsFieldValue(v any) (string, error) {
	lr, ok := v.(LanguageRange)
	if !ok {
		return "", fmt.Errorf("header: expected LanguageRange, got %T", v)
	}
	if lr.Q != 0 && lr.Q != 1 {
		return fmt.Sprintf("%s;q=%.3g", lr.Tag, lr.Q), nil
	}
	return lr.Tag, nil
}

func (languageConverter) FromFieldValue(s string) (any, error) {
	parts := strings.SplitN(s, ";", 2)
	lr := LanguageRange{Tag: strings.TrimSpace(parts[0]), Q: 1}
	if len(parts) == 2 {
		kv := strings.SplitN(strings.TrimSpace(parts[1]), "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "q") {
			if q, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64); err == nil {
				lr.Q = q
			}
		}
	}
	return lr, nil
}

func (languageConverter) NewContainer() any { return []LanguageRange(nil) }

func (c languageConverter) AppendItem(container any, item any) any {
	list, _ := container.([]LanguageRange)
	lr, _ := item.(LanguageRange)
	return append(list, lr)
}

func (languageConverter) ItemConverter() Converter { return languageConverter{} }
func (languageConverter) Delimiter() byte          { return ',' }
func (languageConverter) SeparateValues() bool     { return false }

// Languages converts Accept-Language.
var Languages MultiConverter = languageConverter{}

// --- cookie list (Cookie request header: "name=value; name2=value2") ---

type Cookie struct{ Name, Value string }

type cookieListConverter struct{}

func (cookieListConverter) AsFieldValue(v any) (string, error) {
	cookies, ok := v.([]Cookie)
	if !ok {
		return "", fmt.Errorf("header: expected []Cookie, got %T", v)
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), nil
}

func (cookieListConverter) FromFieldValue(s string) (any, error) {
	parts := strings.Split(s, ";")
	out := make([]Cookie, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("header: malformed cookie pair %q", p)
		}
		out = append(out, Cookie{Name: kv[0], Value: kv[1]})
	}
	return out, nil
}

// CookieList converts Cookie.
var CookieList Converter = cookieListConverter{}

// --- set-cookie list (Set-Cookie response header, separate-values) ---

type SetCookie struct {
	Name, Value string
	Attrs       map[string]string
}

type setCookieConverter struct{}

func (setCookieConverter) AsFieldValue(v any) (string, error) {
	sc, ok := v.(SetCookie)
	if !ok {
		return "", fmt.Errorf("header: expected SetCookie, got %T", v)
	}
	var b strings.Builder
	b.WriteString(sc.Name)
	b.WriteByte('=')
	b.WriteString(sc.Value)
	for k, v := range sc.Attrs {
		b.WriteString("; ")
		b.WriteString(k)
		if v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String(), nil
}

func (setCookieConverter) FromFieldValue(s string) (any, error) {
	parts := strings.Split(s, ";")
	if len(parts) == 0 {
		return nil, fmt.Errorf("header: empty Set-Cookie")
	}
	kv := strings.SplitN(strings.TrimSpace(parts[0]), "=", 2)
	if len(kv) != 2 {
		return nil, fmt.Errorf("header: malformed Set-Cookie %q", s)
	}
	sc := SetCookie{Name: kv[0], Value: kv[1], Attrs: map[string]string{}}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		akv := strings.SplitN(p, "=", 2)
		if len(akv) == 2 {
			sc.Attrs[strings.ToLower(akv[0])] = akv[1]
		} else {
			sc.Attrs[strings.ToLower(akv[0])] = ""
		}
	}
	return sc, nil
}

func (setCookieConverter) NewContainer() any { return []SetCookie(nil) }

func (c setCookieConverter) AppendItem(container any, item any) any {
	list, _ := container.([]SetCookie)
	sc, _ := item.(SetCookie)
	return append(list, sc)
}

func (setCookieConverter) ItemConverter() Converter { return setCookieConverter{} }
func (setCookieConverter) Delimiter() byte          { return ',' }

// SeparateValues is true: Set-Cookie is the one field the encoder emits
// as one physical header line per item (§4.9), since a comma-joined
// Set-Cookie would be ambiguous with the Expires attribute's own comma.
func (setCookieConverter) SeparateValues() bool { return true }

// SetCookieList converts Set-Cookie.
var SetCookieList MultiConverter = setCookieConverter{}

// --- credentials (Authorization, WWW-Authenticate, Proxy-Authenticate,
// Proxy-Authorization) ---

type Credentials struct {
	Scheme string
	Token  string // used when the scheme carries an opaque token (e.g. Bearer)
	Params map[string]string
}

type credentialsConverter struct{}

func (credentialsConverter) AsFieldValue(v any) (string, error) {
	c, ok := v.(Credentials)
	if !ok {
		return "", fmt.Errorf("header: expected Credentials, got %T", v)
	}
	if c.Token != "" {
		return c.Scheme + " " + c.Token, nil
	}
	parts := make([]string, 0, len(c.Params))
	for k, v := range c.Params {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, v))
	}
	return c.Scheme + " " + strings.Join(parts, ", "), nil
}

func (credentialsConverter) FromFieldValue(s string) (any, error) {
	s = strings.TrimSpace(s)
	sp := strings.IndexByte(s, ' ')
	if sp < 0 {
		return Credentials{Scheme: s, Params: map[string]string{}}, nil
	}
	scheme, rest := s[:sp], strings.TrimSpace(s[sp+1:])
	if !strings.Contains(rest, "=") {
		return Credentials{Scheme: scheme, Token: rest}, nil
	}
	params := map[string]string{}
	for _, p := range strings.Split(rest, ",") {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) == 2 {
			params[strings.TrimSpace(kv[0])] = strings.Trim(strings.TrimSpace(kv[1]), `"`)
		}
	}
	return Credentials{Scheme: scheme, Params: params}, nil
}

// CredentialsConv converts Authorization and the Authenticate family.
var CredentialsConv Converter = credentialsConverter{}

// --- product description list (User-Agent, Server, Via) ---

type Product struct {
	Name, Version, Comment string
}

type productListConverter struct{}

func (productListConverter) AsFieldValue(v any) (string, error) {
	products, ok := v.([]Product)
	if !ok {
		return "", fmt.Errorf("header: expected []Product, got %T", v)
	}
	parts := make([]string, 0, len(products))
	for _, p := range products {
		tok := p.Name
		if p.Version != "" {
			tok += "/" + p.Version
		}
		if p.Comment != "" {
			tok += " (" + p.Comment + ")"
		}
		parts = append(parts, tok)
	}
	return strings.Join(parts, " "), nil
}

func (productListConverter) FromFieldValue(s string) (any, error) {
	var out []Product
	for _, tok := range strings.Fields(s) {
		if strings.HasPrefix(tok, "(") {
			if len(out) > 0 {
				out[len(out)-1].Comment = strings.Trim(tok, "()")
			}
			continue
		}
		nv := strings.SplitN(tok, "/", 2)
		p := Product{Name: nv[0]}
		if len(nv) == 2 {
			p.Version = nv[1]
		}
		out = append(out, p)
	}
	return out, nil
}

// ProductList converts User-Agent, Server and Via.
var ProductList Converter = productListConverter{}
