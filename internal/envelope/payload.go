package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var nullJSON = []byte("null")

// Payload is an immutable structured value held as canonical JSON.
// The zero value is JSON null.
type Payload struct {
	raw []byte
}

// Null returns the empty payload.
func Null() Payload {
	return Payload{}
}

// PayloadOf encodes v as a Payload.
func PayloadOf(v any) (Payload, error) {
	if p, ok := v.(Payload); ok {
		return p, nil
	}
	if v == nil {
		return Payload{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, &SerializationError{Op: "encode", Err: err}
	}
	return Payload{raw: data}, nil
}

// ParsePayload validates raw JSON and wraps it as a Payload. The bytes are
// copied.
func ParsePayload(raw []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Payload{}, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return Payload{}, &SerializationError{Op: "decode", Err: errors.New("invalid JSON")}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return Payload{}, &SerializationError{Op: "decode", Err: err}
	}
	return Payload{raw: buf.Bytes()}, nil
}

func (p Payload) bytes() []byte {
	if len(p.raw) == 0 {
		return nullJSON
	}
	return p.raw
}

// Bytes returns a copy of the JSON encoding.
func (p Payload) Bytes() []byte {
	return bytes.Clone(p.bytes())
}

// String returns the JSON encoding.
func (p Payload) String() string {
	return string(p.bytes())
}

// IsNull reports whether the payload is JSON null.
func (p Payload) IsNull() bool {
	return len(p.raw) == 0 || bytes.Equal(p.raw, nullJSON)
}

// Get returns the value at a gjson path, e.g. "project.name" or "logs.#".
func (p Payload) Get(path string) gjson.Result {
	return gjson.GetBytes(p.bytes(), path)
}

// Kind returns the "kind" discriminator of a tagged command payload.
func (p Payload) Kind() string {
	return p.Get("kind").String()
}

// Set returns a copy of the payload with value stored at path.
// A null payload is treated as an empty object.
func (p Payload) Set(path string, value any) (Payload, error) {
	base := p.raw
	if p.IsNull() {
		base = []byte("{}")
	}
	out, err := sjson.SetBytes(bytes.Clone(base), path, value)
	if err != nil {
		return p, &SerializationError{Op: "encode", Err: err}
	}
	return Payload{raw: out}, nil
}

// Delete returns a copy of the payload with path removed.
func (p Payload) Delete(path string) (Payload, error) {
	if p.IsNull() {
		return p, nil
	}
	out, err := sjson.DeleteBytes(bytes.Clone(p.raw), path)
	if err != nil {
		return p, &SerializationError{Op: "encode", Err: err}
	}
	return Payload{raw: out}, nil
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if err := json.Unmarshal(p.bytes(), v); err != nil {
		return &SerializationError{Op: "decode", Err: err}
	}
	return nil
}

// Value returns the payload decoded into generic Go values
// (map[string]any, []any, string, float64, bool or nil).
func (p Payload) Value() any {
	var v any
	_ = json.Unmarshal(p.bytes(), &v)
	return v
}

// Equal reports whether two payloads hold the same structured value,
// regardless of object key order or whitespace.
func (p Payload) Equal(other Payload) bool {
	if bytes.Equal(p.bytes(), other.bytes()) {
		return true
	}
	return reflect.DeepEqual(p.Value(), other.Value())
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	return p.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePayload(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
