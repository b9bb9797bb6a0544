// Package skills defines the contract shared by every skill and every
// manifest instruction handler: declarative parameters, argument coercion,
// the uniform Result value and the error taxonomy.
package skills

import (
	"context"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/device"
)

// ParamType is the declared type of a skill parameter.
type ParamType string

// Supported parameter types. Any other type passes values through unchanged.
const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
	TypePath   ParamType = "path"
)

// Path is a filesystem path argument. It is not validated.
type Path string

func (p Path) String() string {
	return string(p)
}

// Parameter declares one keyword argument accepted by a skill.
type Parameter struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required" yaml:"required"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
}

// Result is the value returned by skills, instruction handlers and the
// manifest executor.
type Result struct {
	Success bool           `json:"success" yaml:"success"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Context is the execution environment a skill runs in.
type Context interface {
	// BasePath is the repository root relative paths are resolved against.
	BasePath() string
	Settings() *config.Settings
	Inventory() (*device.Inventory, error)
	Service(ctx context.Context) (device.Service, error)
}

// Skill is one instance of a skill bound to an execution context.
type Skill interface {
	Run(ctx context.Context, args map[string]any) (*Result, error)
}

// Type describes a skill and constructs instances of it.
type Type struct {
	Name        string
	Description string
	Parameters  []Parameter
	New         func(sc Context) Skill
}

// Execute coerces raw arguments against the declared parameters and runs a
// new instance of the skill. It is the only entry point callers should use.
func (t Type) Execute(ctx context.Context, sc Context, raw map[string]any) (*Result, error) {
	args, err := CoerceArguments(t.Parameters, raw)
	if err != nil {
		return nil, err
	}
	return t.New(sc).Run(ctx, args)
}
