package llm

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	Anonymous:                 true,
	AllowAdditionalProperties: true,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// Schema is a named JSON schema sent as the response format.
type Schema struct {
	Name       string
	Definition map[string]any
}

// SchemaFor reflects a JSON schema from the json tags of v.
func SchemaFor(name string, v any) (*Schema, error) {
	raw, err := json.Marshal(reflector.ReflectFromType(reflect.TypeOf(v)))
	if err != nil {
		return nil, err
	}
	var def map[string]any
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	return &Schema{Name: name, Definition: def}, nil
}

// MustSchemaFor is SchemaFor for package-level variables.
func MustSchemaFor(name string, v any) *Schema {
	s, err := SchemaFor(name, v)
	if err != nil {
		panic(err)
	}
	return s
}
