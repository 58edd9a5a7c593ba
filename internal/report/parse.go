package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

var (
	// ErrEmptyDocument is returned when there is nothing to decode
	ErrEmptyDocument = errors.New("report: empty JSON document")
	// ErrInvalidDocument is returned for syntactically invalid JSON
	ErrInvalidDocument = errors.New("report: invalid JSON document")
)

// Parse decodes a JSON document into a Value. Object keys keep their document
// order; a repeated key keeps its first position and its last value.
func Parse(data []byte) (Value, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Value{}, ErrEmptyDocument
	}

	// The streaming iterator reports truncation as io.EOF, so syntax is checked up front
	if !json.Valid(data) {
		return Value{}, ErrInvalidDocument
	}

	iter := jsoniter.ParseBytes(jsoniter.ConfigCompatibleWithStandardLibrary, data)
	v := readValue(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return Value{}, fmt.Errorf("report: decode JSON: %w", iter.Error)
	}

	return v, nil
}

// ParseLenient decodes model output that is supposed to be JSON. It strips
// markdown code fences, tries a strict decode, and falls back to repairing the
// text when the strict decode fails.
func ParseLenient(raw string) (Value, error) {
	text := stripCodeFence(raw)

	v, err := Parse([]byte(text))
	if err == nil {
		return v, nil
	}
	originalErr := err

	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return Value{}, originalErr
	}

	v, err = Parse([]byte(repaired))
	if err != nil {
		return Value{}, originalErr
	}
	return v, nil
}

func readValue(iter *jsoniter.Iterator) Value {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		var fields []Field
		index := make(map[string]int)
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			val := readValue(it)
			if pos, ok := index[key]; ok {
				fields[pos].Value = val
				return it.Error == nil
			}
			index[key] = len(fields)
			fields = append(fields, Field{Key: key, Value: val})
			return it.Error == nil
		})
		return Map(fields...)

	case jsoniter.ArrayValue:
		var items []Value
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			items = append(items, readValue(it))
			return it.Error == nil
		})
		return List(items...)

	case jsoniter.StringValue:
		return String(iter.ReadString())

	case jsoniter.NumberValue:
		return Number(string(iter.ReadNumber()))

	case jsoniter.BoolValue:
		return Bool(iter.ReadBool())

	case jsoniter.NilValue:
		iter.ReadNil()
		return Null()

	default:
		iter.ReportError("readValue", "unexpected token")
		return Null()
	}
}

// stripCodeFence removes a surrounding ```json ... ``` block, which language
// models like to wrap JSON answers in
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
