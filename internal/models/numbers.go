package models

import (
	"bytes"
	"encoding/json"
)

// DecodeJSON unmarshals data into v keeping numbers exact: integers decode as
// int64 and everything else as float64, so values read back equal the values
// written.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	switch t := v.(type) {
	case *any:
		*t = PlainNumbers(*t)
	case *map[string]any:
		if *t != nil {
			*t = PlainNumbers(*t).(map[string]any)
		}
	}
	return nil
}

// PlainNumbers replaces json.Number inside v with int64 or float64.
func PlainNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = PlainNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = PlainNumbers(item)
		}
		return out
	default:
		return v
	}
}
