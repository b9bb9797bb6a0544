//go:build unix

package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhwoox/Final-RAG/pkg/command"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

func TestExecute_Run(t *testing.T) {
	sc, _ := newSimContext(t)
	require.NoError(t, os.WriteFile(filepath.Join(sc.base, "marker.txt"), []byte("present"), 0o644))

	res, err := execute(t, sc, "## 명령어\n- run cat marker.txt\n")
	require.NoError(t, err)

	logs := res.Details["logs"].([]LogEntry)
	last := logs[len(logs)-1]
	assert.Equal(t, "command executed", last.Message)
	assert.Equal(t, 0, last.Extra["returncode"])
	assert.Equal(t, "present", last.Extra["stdout"])
	assert.Equal(t, sc.base, last.Extra["cwd"])
}

func TestExecute_RunFailures(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		sc, _ := newSimContext(t)
		res, err := execute(t, sc, "## 명령어\n- run sh -c \"exit 4\"\n- log unreachable\n")
		require.Error(t, err)
		assert.True(t, skills.IsKind(err, skills.KindCommandFailed))
		assert.Contains(t, err.Error(), "exited with code 4")
		assert.NotContains(t, logMessages(res), "unreachable")
	})

	t.Run("missing binary", func(t *testing.T) {
		sc, _ := newSimContext(t)
		_, err := execute(t, sc, "## 명령어\n- run definitely-not-a-real-binary-xyz\n")
		require.Error(t, err)
		assert.True(t, skills.IsKind(err, skills.KindCommandFailed))
	})

	t.Run("not allowed", func(t *testing.T) {
		sc, _ := newSimContext(t)
		runner, err := command.NewRunner(command.WithAllowed("echo *"))
		require.NoError(t, err)

		_, err = execute(t, sc, "## 명령어\n- run echo ok\n- run rm -rf build\n", WithRunner(runner))
		require.Error(t, err)
		assert.True(t, skills.IsKind(err, skills.KindCommandNotAllowed))
	})

	t.Run("allowlist from settings", func(t *testing.T) {
		sc, _ := newSimContext(t)
		sc.settings.Command.Allowed = []string{"[broken"}
		_, err := New(sc, parse(""))
		require.Error(t, err)
	})
}
