package biometric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldKind tells which variant a Field holds.
type FieldKind int

const (
	FieldEmpty FieldKind = iota
	FieldText
	FieldObject
)

// Field is a gateway attribute sent either as a scalar or as an object,
// depending on device firmware.
type Field struct {
	Kind   FieldKind
	Text   string
	Object map[string]any
}

// Text builds a text field.
func Text(s string) Field {
	return Field{Kind: FieldText, Text: s}
}

// Object builds an object field.
func Object(m map[string]any) Field {
	return Field{Kind: FieldObject, Object: m}
}

// UnmarshalJSON accepts strings, numbers, booleans, objects and null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = Field{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) != "" {
			*f = Text(strings.TrimSpace(s))
		}
		return nil
	case '{':
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*f = Object(m)
		return nil
	case '[':
		return fmt.Errorf("biometric field: arrays are not supported")
	default:
		*f = Text(string(data))
		return nil
	}
}

// MarshalJSON writes the field back in its received shape.
func (f Field) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FieldText:
		return json.Marshal(f.Text)
	case FieldObject:
		return json.Marshal(f.Object)
	default:
		return []byte("null"), nil
	}
}

// IsEmpty reports whether the field carries no value.
func (f Field) IsEmpty() bool {
	return f.Kind == FieldEmpty
}

// Lookup returns the first non-empty string among keys of an object field.
func (f Field) Lookup(keys ...string) string {
	if f.Kind != FieldObject {
		return ""
	}
	for _, k := range keys {
		v, ok := f.Object[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Value returns the text variant, or the first matching key of the object variant.
func (f Field) Value(keys ...string) string {
	if f.Kind == FieldText {
		return f.Text
	}
	return f.Lookup(keys...)
}
