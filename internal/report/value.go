// Package report turns an insight report (an arbitrarily nested JSON record produced
// by the insight generator) into a paginated PDF with hierarchical headings,
// simulated indentation and highlighted numeric findings.
package report

import (
	"bytes"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Kind tags the variant held by a Value
type Kind int

const (
	KindPrimitive Kind = iota
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "primitive"
	}
}

// PrimitiveType distinguishes the JSON scalar a primitive came from
type PrimitiveType int

const (
	PrimitiveNull PrimitiveType = iota
	PrimitiveString
	PrimitiveNumber
	PrimitiveBool
)

// Field is one key/value entry of a mapping
type Field struct {
	Key   string
	Value Value
}

// Value is a node of an insight report: a mapping, a sequence or a primitive.
// Mappings keep their keys in insertion order.
type Value struct {
	kind   Kind
	ptype  PrimitiveType
	text   string
	fields []Field
	items  []Value
}

// Map builds a mapping value from fields in the given order
func Map(fields ...Field) Value {
	if fields == nil {
		fields = []Field{}
	}
	return Value{kind: KindMapping, fields: fields}
}

// F is shorthand for a mapping field
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// List builds a sequence value
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// String builds a string primitive
func String(s string) Value {
	return Value{kind: KindPrimitive, ptype: PrimitiveString, text: s}
}

// Number builds a numeric primitive from its literal text (e.g. "7.2", "-3")
func Number(literal string) Value {
	return Value{kind: KindPrimitive, ptype: PrimitiveNumber, text: literal}
}

// Bool builds a boolean primitive
func Bool(b bool) Value {
	if b {
		return Value{kind: KindPrimitive, ptype: PrimitiveBool, text: "true"}
	}
	return Value{kind: KindPrimitive, ptype: PrimitiveBool, text: "false"}
}

// Null builds an absent value
func Null() Value {
	return Value{kind: KindPrimitive, ptype: PrimitiveNull}
}

func (v Value) Kind() Kind                   { return v.kind }
func (v Value) PrimitiveType() PrimitiveType { return v.ptype }
func (v Value) Fields() []Field              { return v.fields }
func (v Value) Items() []Value               { return v.items }

// IsLeaf reports whether the value is a primitive
func (v Value) IsLeaf() bool { return v.kind == KindPrimitive }

// Text returns the display text of a primitive; null renders as the empty string
func (v Value) Text() string {
	if v.kind != KindPrimitive || v.ptype == PrimitiveNull {
		return ""
	}
	return v.text
}

// Get returns the value stored under key in a mapping
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of fields or items of a container, 0 for primitives
func (v Value) Len() int {
	switch v.kind {
	case KindMapping:
		return len(v.fields)
	case KindSequence:
		return len(v.items)
	default:
		return 0
	}
}

// MarshalJSON encodes the value back to compact JSON, keeping key order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(&buf)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	writeValue(stream, v)
	if err := stream.Flush(); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON document preserving object key order
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func writeValue(stream *jsoniter.Stream, v Value) {
	switch v.kind {
	case KindMapping:
		stream.WriteObjectStart()
		for i, f := range v.fields {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(f.Key)
			writeValue(stream, f.Value)
		}
		stream.WriteObjectEnd()
	case KindSequence:
		stream.WriteArrayStart()
		for i, item := range v.items {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, item)
		}
		stream.WriteArrayEnd()
	default:
		switch v.ptype {
		case PrimitiveNull:
			stream.WriteNil()
		case PrimitiveNumber, PrimitiveBool:
			stream.WriteRaw(v.text)
		default:
			stream.WriteString(v.text)
		}
	}
}

// compact returns the single-line JSON text of a value, used when flattening
// values nested beyond the depth limit
func compact(v Value) string {
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
