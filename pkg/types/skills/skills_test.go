package skills

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/device"
)

func TestCoerceArguments_Int(t *testing.T) {
	params := []Parameter{{Name: "count", Type: TypeInt}}

	out, err := CoerceArguments(params, map[string]any{"count": "3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 3}, out)

	out, err = CoerceArguments(params, map[string]any{"count": "0x1301"})
	require.NoError(t, err)
	assert.Equal(t, 0x1301, out["count"])

	_, err = CoerceArguments(params, map[string]any{"count": "three"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCoercion))
}

func TestCoerceArguments_MissingRequired(t *testing.T) {
	params := []Parameter{{Name: "x", Type: TypeString, Required: true}}

	_, err := CoerceArguments(params, map[string]any{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMissingArgument))
	assert.Contains(t, err.Error(), `"x"`)
}

func TestCoerceArguments_Defaults(t *testing.T) {
	params := []Parameter{
		{Name: "timeout", Type: TypeFloat, Default: 5.0},
		{Name: "payload", Type: TypePath},
		{Name: "required_with_default", Type: TypeInt, Required: true, Default: 7},
	}

	out, err := CoerceArguments(params, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out["timeout"])
	assert.Equal(t, 7, out["required_with_default"])
	_, ok := out["payload"]
	assert.False(t, ok)
}

func TestCoerceArguments_Bool(t *testing.T) {
	params := []Parameter{{Name: "flag", Type: TypeBool}}

	tests := []struct {
		input    any
		expected bool
	}{
		{"1", true},
		{"TRUE", true},
		{"Yes", true},
		{"y", true},
		{"0", false},
		{"false", false},
		{"NO", false},
		{"n", false},
		{true, true},
		{false, false},
	}
	for _, tt := range tests {
		out, err := CoerceArguments(params, map[string]any{"flag": tt.input})
		require.NoError(t, err, "input %v", tt.input)
		assert.Equal(t, tt.expected, out["flag"], "input %v", tt.input)
	}

	for _, bad := range []any{"maybe", 0, 1, 2, uint8(1), 1.0} {
		_, err := CoerceArguments(params, map[string]any{"flag": bad})
		require.Error(t, err, "input %v", bad)
		assert.True(t, IsKind(err, KindCoercion), "input %v", bad)
	}
}

func TestCoerceArguments_StringPassthrough(t *testing.T) {
	params := []Parameter{{Name: "label", Type: TypeString}}

	for _, in := range []any{"door-1", 42, []string{"a"}} {
		out, err := CoerceArguments(params, map[string]any{"label": in})
		require.NoError(t, err)
		assert.Equal(t, in, out["label"], "string parameters are not converted")
	}
}

func TestCoerceArguments_PathAndPassthrough(t *testing.T) {
	params := []Parameter{
		{Name: "file", Type: TypePath},
		{Name: "opaque", Type: ParamType("custom")},
	}
	opaque := []int{1, 2}

	out, err := CoerceArguments(params, map[string]any{
		"file":   "does/not/exist.json",
		"opaque": opaque,
		"extra":  42,
	})
	require.NoError(t, err)
	assert.Equal(t, Path("does/not/exist.json"), out["file"])
	assert.Equal(t, opaque, out["opaque"])
	assert.Equal(t, 42, out["extra"])
}

func TestCoerceArguments_Float(t *testing.T) {
	params := []Parameter{{Name: "timeout", Type: TypeFloat}}

	out, err := CoerceArguments(params, map[string]any{"timeout": "2.5"})
	require.NoError(t, err)
	assert.Equal(t, 2.5, out["timeout"])

	_, err = CoerceArguments(params, map[string]any{"timeout": "soon"})
	assert.True(t, IsKind(err, KindCoercion))
}

func TestErrorKinds(t *testing.T) {
	base := NewError(KindAssertionFailed, "expected %d", 1)
	assert.Equal(t, "AssertionFailed: expected 1", base.Error())

	wrapped := errors.Wrap(base, "verification")
	assert.True(t, IsKind(wrapped, KindAssertionFailed))
	assert.False(t, IsKind(wrapped, KindParse))

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindAssertionFailed, kind)

	nested := WrapError(base, KindExpression, "evaluating")
	assert.True(t, IsKind(nested, KindExpression))
	assert.True(t, IsKind(nested, KindAssertionFailed))
	assert.Contains(t, nested.Error(), "expected 1")

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

type echoSkill struct{}

func (echoSkill) Run(_ context.Context, args map[string]any) (*Result, error) {
	return &Result{Success: true, Message: "ok", Details: args}, nil
}

type nopContext struct{}

func (nopContext) BasePath() string                      { return "." }
func (nopContext) Settings() *config.Settings            { return nil }
func (nopContext) Inventory() (*device.Inventory, error) { return &device.Inventory{}, nil }
func (nopContext) Service(context.Context) (device.Service, error) {
	return nil, errors.New("no service")
}

func TestType_Execute(t *testing.T) {
	typ := Type{
		Name:       "echo",
		Parameters: []Parameter{{Name: "n", Type: TypeInt, Required: true}},
		New:        func(Context) Skill { return echoSkill{} },
	}

	res, err := typ.Execute(context.Background(), nopContext{}, map[string]any{"n": "4"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Details["n"])

	_, err = typ.Execute(context.Background(), nopContext{}, nil)
	assert.True(t, IsKind(err, KindMissingArgument))
}
