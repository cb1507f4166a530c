package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecipe = `
seed: 42
steps: 100
`

const invalidRecipe = `
seed: 42
steps: -5
`

func writeRecipe(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.cue")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestCompileCommandResolvesDefaults(t *testing.T) {
	path := writeRecipe(t, validRecipe)
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), data["seed"])
	assert.Equal(t, float64(100), data["steps"])
	assert.Equal(t, float64(0.85), data["successRate"])
}

func TestCompileCommandRejectsInvalidRecipe(t *testing.T) {
	path := writeRecipe(t, invalidRecipe)
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCompileCommandMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "does-not-exist.cue")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileCommandWritesOutputFile(t *testing.T) {
	recipePath := writeRecipe(t, validRecipe)
	outPath := filepath.Join(t.TempDir(), "resolved.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"-o", outPath, recipePath})

	require.NoError(t, cmd.Execute())

	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var r struct {
		Seed  uint64 `json:"seed"`
		Steps int    `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(contents, &r))
	assert.Equal(t, uint64(42), r.Seed)
	assert.Equal(t, 100, r.Steps)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, outPath, data["written_to"])
}

func TestCompileCommandOutputFlagShorthand(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	flag := cmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "o", flag.Shorthand)
}

func TestCompileCommandRequiresExactlyOneArg(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
}
