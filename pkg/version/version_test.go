package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleInfo() Info {
	return Info{
		Version:   "0.3.0",
		GitCommit: "abc123",
		BuildTime: "2026-10-01T09:00:00Z",
		GoVersion: "go1.25.1",
		Platform:  "linux/amd64",
	}
}

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfo_String(t *testing.T) {
	expected := "skillrun 0.3.0 (commit abc123, built 2026-10-01T09:00:00Z, go1.25.1 linux/amd64)"
	assert.Equal(t, expected, sampleInfo().String())
}

func TestInfo_JSON(t *testing.T) {
	jsonString, err := sampleInfo().JSON()
	require.NoError(t, err)

	expectedJSON := `{
  "version": "0.3.0",
  "gitCommit": "abc123",
  "buildTime": "2026-10-01T09:00:00Z",
  "goVersion": "go1.25.1",
  "platform": "linux/amd64"
}`
	assert.Equal(t, expectedJSON, jsonString)

	var parsed Info
	require.NoError(t, json.Unmarshal([]byte(jsonString), &parsed))
	assert.Equal(t, sampleInfo(), parsed)
}

func TestInfo_YAML(t *testing.T) {
	yamlString, err := sampleInfo().YAML()
	require.NoError(t, err)
	assert.Contains(t, yamlString, "gitCommit: abc123\n")

	var parsed Info
	require.NoError(t, yaml.Unmarshal([]byte(yamlString), &parsed))
	assert.Equal(t, sampleInfo(), parsed)
}
