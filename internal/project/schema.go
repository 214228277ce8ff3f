package project

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var pointerSchema *jsonschema.Schema

func init() {
	const raw = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "hoist project pointer",
  "type": "object",
  "required": ["serviceId"],
  "properties": {
    "serviceId": {"type": "string", "minLength": 1, "maxLength": 255, "pattern": "\\S"}
  }
}`

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("hoist://pointer.schema.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	s, err := compiler.Compile("hoist://pointer.schema.json")
	if err != nil {
		panic(err)
	}
	pointerSchema = s
}

// validatePointer checks raw pointer file bytes. Unknown fields are allowed.
func validatePointer(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return pointerSchema.Validate(v)
}
