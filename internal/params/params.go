// Package params turns the loosely typed argument bag a transport delivers into
// validated, typed operation arguments.
//
// Every operation declares a Schema. Normalize applies one shared coercion pass
// to the bag: integer-typed fields accept native integers, integral floats and
// numeric strings, optional fields fall back to their declared default, and
// anything that cannot be coerced fails with apperr.InvalidArgument.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

// Type is the declared type of a parameter.
type Type int

const (
	String Type = iota
	Integer
	StringList
	Object
	Any
)

// String names the type in messages.
func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case StringList:
		return "string list"
	case Object:
		return "object"
	default:
		return "any"
	}
}

// NoLimit is the default of optional limits that mean "unbounded".
const NoLimit int64 = 0

// Param declares one named argument.
type Param struct {
	Name        string
	Type        Type
	Required    bool
	Description string
	// Default applies when an optional argument is absent. Integer defaults are
	// int64, string defaults are string. Nil means "absent stays absent".
	Default any
	// Min and Max bound the accepted values of an Integer parameter, if set.
	Min *int64
	Max *int64
}

// Schema is the declared argument list of one operation.
type Schema struct {
	Name        string
	Description string
	Params      []Param
}

// Min returns a pointer for Param.Min.
func Min(v int64) *int64 { return &v }

// Max returns a pointer for Param.Max.
func Max(v int64) *int64 { return &v }

// Decode parses a raw JSON argument object. Numbers are kept as json.Number so
// large integers survive. An empty payload is an empty bag.
func Decode(raw json.RawMessage) (map[string]any, error) {
	bag := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return bag, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&bag); err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, err, "arguments must be a JSON object")
	}
	return bag, nil
}

// Normalize coerces bag against the schema. Unknown keys are ignored; absent
// optional keys take their default.
func (s Schema) Normalize(bag map[string]any) (Args, error) {
	out := Args{op: s.Name, values: make(map[string]any, len(s.Params))}
	for _, p := range s.Params {
		raw, present := bag[p.Name]
		if raw == nil {
			present = false
		}
		if !present {
			if p.Required {
				return Args{}, apperr.Invalid("%s: missing required argument %q", s.Name, p.Name)
			}
			if p.Default != nil {
				out.values[p.Name] = p.Default
			}
			continue
		}
		v, err := coerce(p, raw)
		if err != nil {
			return Args{}, apperr.Wrap(apperr.InvalidArgument, err, "%s: argument %q", s.Name, p.Name)
		}
		out.values[p.Name] = v
	}
	return out, nil
}

func coerce(p Param, raw any) (any, error) {
	switch p.Type {
	case Integer:
		n, err := Int(raw)
		if err != nil {
			return nil, err
		}
		if p.Min != nil && n < *p.Min {
			return nil, fmt.Errorf("must be >= %d, got %d", *p.Min, n)
		}
		if p.Max != nil && n > *p.Max {
			return nil, fmt.Errorf("must be <= %d, got %d", *p.Max, n)
		}
		return n, nil
	case String:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		if p.Required && s == "" {
			return nil, fmt.Errorf("must not be empty")
		}
		return s, nil
	case StringList:
		return stringList(raw)
	case Object:
		return object(raw)
	default:
		return plain(raw), nil
	}
}

// Int coerces an integer-typed value. Accepted: Go integers, integral floats,
// json.Number and strings that parse as one of those after trimming.
func Int(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return parseIntString(n.String())
	case string:
		return parseIntString(n)
	case bool:
		return 0, fmt.Errorf("expected integer, got boolean")
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func parseIntString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("expected integer, got empty string")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %q", s)
	}
	return fromFloat(f)
}

func fromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("integer %v out of range", f)
	}
	return int64(f), nil
}

// stringList accepts a JSON array of strings, a single string, or a string
// holding a JSON array.
func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var out []string
			if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
				return nil, fmt.Errorf("expected list of strings: %w", err)
			}
			return out, nil
		}
		if trimmed == "" {
			return nil, nil
		}
		return []string{trimmed}, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", raw)
	}
}

// object accepts a JSON object or a string holding one.
func object(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return plain(v).(map[string]any), nil
	case string:
		bag, err := Decode(json.RawMessage(v))
		if err != nil {
			return nil, fmt.Errorf("expected object: %w", err)
		}
		return plain(bag).(map[string]any), nil
	default:
		return nil, fmt.Errorf("expected object, got %T", raw)
	}
}

// plain replaces json.Number with int64 or float64 so values stored downstream
// marshal the same way regardless of how they were decoded.
func plain(v any) any { return models.PlainNumbers(v) }

// Args holds normalized arguments of one call.
type Args struct {
	op     string
	values map[string]any
}

// Op is the operation the arguments were normalized for.
func (a Args) Op() string { return a.op }

// Has reports whether name is present after defaults were applied.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns the string argument, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Int returns the integer argument, or 0 when absent.
func (a Args) Int(name string) int64 {
	n, _ := a.values[name].(int64)
	return n
}

// OptionalInt returns nil when name is absent and has no default.
func (a Args) OptionalInt(name string) *int64 {
	n, ok := a.values[name].(int64)
	if !ok {
		return nil
	}
	return &n
}

// Strings returns the string list argument.
func (a Args) Strings(name string) []string {
	s, _ := a.values[name].([]string)
	return s
}

// Object returns the object argument, or nil when absent.
func (a Args) Object(name string) map[string]any {
	m, _ := a.values[name].(map[string]any)
	return m
}

// Value returns the argument as coerced, whatever its type.
func (a Args) Value(name string) any {
	return a.values[name]
}

// Names returns the present argument names, sorted.
func (a Args) Names() []string {
	names := make([]string, 0, len(a.values))
	for k := range a.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
