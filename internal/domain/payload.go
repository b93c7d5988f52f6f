package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the untyped article data published by the crawler.
type Payload map[string]any

// ReplayKey marks payloads reconstructed by a full replay.
const ReplayKey = "_replay"

// DecodePayload decodes a JSON object, keeping numbers as json.Number so ids survive verbatim.
func DecodePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("decode payload: not an object")
	}
	return p, nil
}

// Has reports whether key is present with a non-empty value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return s != ""
	}
	return true
}

// String returns the value under key rendered as a string, or "" if absent.
func (p Payload) String(key string) string {
	return stringify(p[key])
}

// FirstString returns the first non-empty string among keys.
func (p Payload) FirstString(keys ...string) string {
	for _, key := range keys {
		if s := p.String(key); s != "" {
			return s
		}
	}
	return ""
}

// OptionalString is FirstString returning nil when every key is empty.
func (p Payload) OptionalString(keys ...string) *string {
	s := p.FirstString(keys...)
	if s == "" {
		return nil
	}
	return &s
}

// Float returns the numeric value under key. Numeric strings are accepted.
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Map returns the nested object under key, or nil.
func (p Payload) Map(key string) map[string]any {
	switch v := p[key].(type) {
	case map[string]any:
		return v
	case Payload:
		return v
	case Metadata:
		return v
	}
	return nil
}

// Strings returns the string elements of the array under key, preserving order.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Bool reports whether the value under key is truthy.
func (p Payload) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case json.Number:
		return v.String() != "0"
	}
	return false
}

// PublisherString reads a string field of the nested publisher object.
func (p Payload) PublisherString(key string) string {
	return stringify(p.Map("publisher")[key])
}

// ExternalID returns the dedup key of the payload.
func (p Payload) ExternalID() string {
	return p.String("id")
}

// Title returns the best available title.
func (p Payload) Title() string {
	return p.FirstString("title", "og_title")
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
