package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

type echoSkill struct{}

func (echoSkill) Run(_ context.Context, args map[string]any) (*skilltypes.Result, error) {
	return &skilltypes.Result{Success: true, Message: "echo", Details: args}, nil
}

func echoType(name string) skilltypes.Type {
	return skilltypes.Type{
		Name:        name,
		Description: "Echo the arguments back",
		Parameters: []skilltypes.Parameter{
			{Name: "count", Type: skilltypes.TypeInt, Required: true, Description: "How many"},
			{Name: "target", Type: skilltypes.TypePath},
			{Name: "verbose", Type: skilltypes.TypeBool, Default: false},
		},
		New: func(skilltypes.Context) skilltypes.Skill { return echoSkill{} },
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoType("echo")))

	err := r.Register(echoType("echo"))
	require.Error(t, err)
	assert.True(t, skilltypes.IsKind(err, skilltypes.KindDuplicateSkill))

	err = r.Register(skilltypes.Type{Name: "broken"})
	assert.True(t, skilltypes.IsKind(err, skilltypes.KindInvalidInstruction))

	err = r.Register(skilltypes.Type{New: echoType("x").New})
	assert.True(t, skilltypes.IsKind(err, skilltypes.KindInvalidInstruction))

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	require.NoError(t, r.Register(echoType("echo")))

	res, err := r.Create(ctx, "echo", nil, map[string]any{"count": "3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Details["count"])
	assert.Equal(t, false, res.Details["verbose"])

	_, err = r.Create(ctx, "echo", nil, map[string]any{})
	require.Error(t, err)
	assert.True(t, skilltypes.IsKind(err, skilltypes.KindMissingArgument))

	_, err = r.Create(ctx, "nope", nil, nil)
	require.Error(t, err)
	assert.True(t, skilltypes.IsKind(err, skilltypes.KindUnknownSkill))
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(echoType(name)))
	}

	var names []string
	for _, typ := range r.List() {
		names = append(names, typ.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegistry_EnsureBuiltinLoaded(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.EnsureBuiltinLoaded())
	require.NoError(t, r.EnsureBuiltinLoaded())

	_, ok := r.Get("list_devices")
	assert.True(t, ok)
	_, ok = r.Get("fingerprint_auth_success")
	assert.True(t, ok)
	assert.Len(t, r.List(), 2)

	clash := NewRegistry()
	require.NoError(t, clash.Register(echoType("list_devices")))
	err := clash.EnsureBuiltinLoaded()
	require.Error(t, err)
	assert.True(t, skilltypes.IsKind(err, skilltypes.KindDuplicateSkill))
	assert.Equal(t, err, clash.EnsureBuiltinLoaded())
}

func TestParametersSchema(t *testing.T) {
	schema := ParametersSchema(echoType("echo"))
	assert.Equal(t, "echo", schema.Title)
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"count"}, schema.Required)

	count, ok := schema.Properties.Get("count")
	require.True(t, ok)
	assert.Equal(t, "integer", count.Type)
	assert.Equal(t, "How many", count.Description)

	target, ok := schema.Properties.Get("target")
	require.True(t, ok)
	assert.Equal(t, "string", target.Type)
	assert.Equal(t, "path", target.Format)

	verbose, ok := schema.Properties.Get("verbose")
	require.True(t, ok)
	assert.Equal(t, "boolean", verbose.Type)
	assert.Equal(t, false, verbose.Default)
}
