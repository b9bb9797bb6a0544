// Package builtin holds the skills bundled with skillrun.
package builtin

import (
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// All returns the built-in skill types.
func All() []skills.Type {
	return []skills.Type{
		ListDevices(),
		FingerprintAuthSuccess(),
	}
}

// decodeArgs decodes coerced skill arguments into a params struct.
// Undeclared arguments are ignored.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create argument decoder")
	}
	if err := dec.Decode(args); err != nil {
		return skills.WrapError(err, skills.KindCoercion, "invalid skill arguments")
	}
	return nil
}

func settingsOf(sc skills.Context) *config.Settings {
	if s := sc.Settings(); s != nil {
		return s
	}
	return config.Default()
}

func resolvePath(sc skills.Context, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(sc.BasePath(), path)
}
