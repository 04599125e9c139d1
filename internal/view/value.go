package view

import (
	"bytes"
	"encoding/json"
	"strconv"
)

var nullLiteral = []byte("null")

// Value is a JSON value copied verbatim from a document field.
// The zero Value stands for an absent field and encodes as null.
type Value json.RawMessage

// StringValue returns a Value holding the JSON string s.
func StringValue(s string) Value {
	b, _ := json.Marshal(s)
	return Value(b)
}

// IntValue returns a Value holding the JSON number n.
func IntValue(n int64) Value {
	return Value(strconv.AppendInt(nil, n, 10))
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return nullLiteral, nil
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = append((*v)[:0], data...)
	return nil
}

// IsNull reports whether the field was absent or null.
func (v Value) IsNull() bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), nullLiteral)
}

// Str returns the string held by v. ok is false when v is not a JSON string.
func (v Value) Str() (s string, ok bool) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

// String renders v for display: strings unquoted, everything else as JSON text.
func (v Value) String() string {
	if s, ok := v.Str(); ok {
		return s
	}
	if len(v) == 0 {
		return "null"
	}
	return string(bytes.TrimSpace(v))
}
