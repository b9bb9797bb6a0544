package expression

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

func newTestEvaluator(calls *[]string) *Evaluator {
	return New(
		WithFunction("observed_event", func(params ...any) (any, error) {
			*calls = append(*calls, "observed_event")
			if len(params) != 1 {
				return nil, errors.New("observed_event takes one argument")
			}
			if params[0] == "m1" {
				return 0x1301, nil
			}
			return nil, nil
		}),
		WithFunctions(map[string]Func{
			"fail": func(...any) (any, error) {
				*calls = append(*calls, "fail")
				return nil, skills.NewError(skills.KindEventNotObserved, "m1 not observed")
			},
			"double": func(params ...any) (any, error) {
				n, err := ToInt(params[0])
				return n * 2, err
			},
		}),
	)
}

func TestEvaluate_Expression(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)
	vars := map[string]any{"count": 2}
	reserved := map[string]any{"target_id": uint32(7)}

	out, err := e.Evaluate(context.Background(), "observed_event('m1') == 0x1301", reserved, vars)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), "double(count) + 1", reserved, vars)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = e.Evaluate(context.Background(), "target_id", reserved, vars)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), out)

	_, hasTarget := vars["target_id"]
	assert.False(t, hasTarget, "reserved bindings are not written back")
	_, hasTrue := vars["True"]
	assert.False(t, hasTrue, "constants are not written back")
}

func TestEvaluate_Statements(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)
	vars := map[string]any{}

	out, err := e.Evaluate(context.Background(), "x = 1; y = x + 1", nil, vars)
	require.NoError(t, err)
	assert.Nil(t, out, "statement blocks have no value")
	assert.Equal(t, 1, vars["x"])
	assert.Equal(t, 2, vars["y"])

	out, err = e.Evaluate(context.Background(), "code = observed_event('m1')\nok = code == 4865", nil, vars)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0x1301, vars["code"])
	assert.Equal(t, true, vars["ok"])

	out, err = e.Evaluate(context.Background(), `label = "a;b"`, nil, vars)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, "a;b", vars["label"])

	out, err = e.Evaluate(context.Background(), "x = 0; 1", nil, vars)
	require.NoError(t, err)
	assert.Nil(t, out, "a trailing bare expression does not give the block a value")
	assert.False(t, Truthy(out))
}

func TestEvaluate_StatementErrors(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)
	vars := map[string]any{}

	_, err := e.Evaluate(context.Background(), "x = (1", nil, vars)
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindExpression))

	_, err = e.Evaluate(context.Background(), "double = 3", nil, vars)
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindExpression))

	_, err = e.Evaluate(context.Background(), "a = 1; b = fail()", nil, vars)
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindEventNotObserved))
	assert.Equal(t, 1, vars["a"], "bindings made before the failure are kept")
}

func TestEvaluate_RuntimeErrorIsNotRetried(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)

	_, err := e.Evaluate(context.Background(), "fail()", nil, map[string]any{})
	require.Error(t, err)

	kind, ok := skills.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, skills.KindEventNotObserved, kind)
	assert.Equal(t, []string{"fail"}, calls, "a runtime failure runs the expression once")
}

func TestEvaluate_UnknownName(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)

	_, err := e.Evaluate(context.Background(), "missing_variable + 1", nil, map[string]any{})
	require.Error(t, err)
	assert.True(t, skills.IsKind(err, skills.KindExpression))
}

func TestEvaluate_Empty(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)

	out, err := e.Evaluate(context.Background(), "   ", nil, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEvaluate_PythonConstants(t *testing.T) {
	var calls []string
	e := newTestEvaluator(&calls)

	out, err := e.Evaluate(context.Background(), "True && !False && None == nil", nil, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"event code", 0x1301, true},
		{"zero uint32", uint32(0), false},
		{"zero float", 0.0, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"empty slice", []int{}, false},
		{"slice", []int{1}, true},
		{"empty map", map[string]any{}, false},
		{"nil pointer", (*int)(nil), false},
		{"struct", struct{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truthy(tt.value))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(1, 1))
	assert.False(t, Equal(1, 2))
	assert.True(t, Equal(0x1301, uint32(4865)))
	assert.True(t, Equal(2, 2.0))
	assert.False(t, Equal(1, "1"))
	assert.True(t, Equal("a", "a"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 0))
	assert.True(t, Equal([]int{1}, []int{1}))
}

func TestToInt(t *testing.T) {
	n, err := ToInt("0x1301")
	require.NoError(t, err)
	assert.Equal(t, 0x1301, n)

	n, err = ToInt(3.0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ToInt(2.5)
	assert.Error(t, err)

	_, err = ToInt([]int{})
	assert.Error(t, err)

	f, err := ToFloat("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
}
