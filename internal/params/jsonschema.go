package params

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema renders the declared arguments as the tool input schema a client
// sees. Integer parameters advertise integer, number and string so clients
// that stringify numbers are not rejected before coercion runs.
func (s Schema) JSONSchema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(s.Params))
	var required []string
	for _, p := range s.Params {
		props[p.Name] = paramSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func paramSchema(p Param) *jsonschema.Schema {
	var sch *jsonschema.Schema
	switch p.Type {
	case Integer:
		sch = &jsonschema.Schema{Types: []string{"integer", "number", "string", "null"}}
	case String:
		sch = &jsonschema.Schema{Types: []string{"string", "null"}}
	case StringList:
		sch = &jsonschema.Schema{
			Types: []string{"array", "string", "null"},
			Items: &jsonschema.Schema{Type: "string"},
		}
	case Object:
		sch = &jsonschema.Schema{Types: []string{"object", "string", "null"}}
	default:
		sch = &jsonschema.Schema{}
	}
	sch.Description = p.Description
	return sch
}
