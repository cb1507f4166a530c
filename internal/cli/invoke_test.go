package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeCommandSubmitsRequest(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "clinic.db")
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewInvokeCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--user", "7", "--day", "0", "--hour", "9", "--minute", "0", "--apt", "1"})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["submitted"])
}

func TestInvokeCommandRequiresDB(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewInvokeCommand(rootOpts)
	cmd.SetArgs([]string{"--user", "1"})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestInvokeHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewInvokeCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "Submit a single RequestSlot input")
	assert.Contains(t, output, "--db")
}
