package skills

import (
	"github.com/invopop/jsonschema"

	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

var schemaTypes = map[skilltypes.ParamType]string{
	skilltypes.TypeString: "string",
	skilltypes.TypeInt:    "integer",
	skilltypes.TypeFloat:  "number",
	skilltypes.TypeBool:   "boolean",
	skilltypes.TypePath:   "string",
}

// ParametersSchema describes the parameters of t as a JSON schema object.
func ParametersSchema(t skilltypes.Type) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Title:       t.Name,
		Description: t.Description,
		Type:        "object",
		Properties:  jsonschema.NewProperties(),
	}

	for _, p := range t.Parameters {
		prop := &jsonschema.Schema{
			Type:        schemaTypes[p.Type],
			Description: p.Description,
			Default:     p.Default,
		}
		if p.Type == skilltypes.TypePath {
			prop.Format = "path"
		}
		schema.Properties.Set(p.Name, prop)
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}
