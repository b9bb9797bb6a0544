package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfig_Arguments(t *testing.T) {
	tests := []struct {
		name     string
		params   []string
		expected map[string]any
		errMsg   string
	}{
		{name: "none", expected: map[string]any{}},
		{
			name:     "values stay strings",
			params:   []string{"timeout=10", "only_connected=false"},
			expected: map[string]any{"timeout": "10", "only_connected": "false"},
		},
		{name: "value with equals", params: []string{"expr=a=b"}, expected: map[string]any{"expr": "a=b"}},
		{name: "empty value", params: []string{"user_payload="}, expected: map[string]any{"user_payload": ""}},
		{name: "missing equals", params: []string{"timeout"}, errMsg: `invalid parameter "timeout"`},
		{name: "missing key", params: []string{"=1"}, errMsg: `invalid parameter "=1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewRunConfig()
			config.Params = tt.params

			args, err := config.Arguments()
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}
}

func TestRunConfig_Validate(t *testing.T) {
	config := NewRunConfig()
	assert.NoError(t, config.Validate())

	config.Output = "table"
	assert.Error(t, config.Validate())
}

func TestGetRunConfigFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	defaults := NewRunConfig()
	cmd.Flags().StringArrayP("param", "p", defaults.Params, "")
	cmd.Flags().StringP("output", "o", defaults.Output, "")

	require.NoError(t, cmd.Flags().Parse([]string{"-p", "a=1", "--param", "b=2", "-o", "json"}))

	config := getRunConfigFromFlags(cmd)
	assert.Equal(t, []string{"a=1", "b=2"}, config.Params)
	assert.Equal(t, "json", config.Output)
}
