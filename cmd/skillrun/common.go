package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/skillctx"
	"github.com/dhwoox/Final-RAG/pkg/skills"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// validateOutput rejects unknown --output values.
func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return errors.Errorf("invalid output format %q, must be one of: %s", format,
			strings.Join([]string{outputText, outputJSON, outputYAML}, ", "))
	}
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to render JSON")
		}
		fmt.Fprintln(w, string(out))
		return nil
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to render YAML")
		}
		return enc.Close()
	default:
		return errors.Errorf("format %q is not structured", format)
	}
}

// newSkillContext loads the settings bound to viper and builds an execution
// context holding a registry with the built-in skills.
func newSkillContext() (*skillctx.Context, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	registry := skills.NewRegistry()
	if err := registry.EnsureBuiltinLoaded(); err != nil {
		return nil, errors.Wrap(err, "failed to load built-in skills")
	}
	return skillctx.New(settings, skillctx.WithRegistry(registry)), nil
}
