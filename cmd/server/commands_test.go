package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_refresh/internal/orchestrator"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// restored after the test; --config-dir overwrites it
	t.Setenv("GO_REFRESH_CONFIG_PATH", "")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeProject creates a config dir with one country file and a copy task
// that refreshes it from source.
func writeProject(t *testing.T, source string) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "countries.csv")
	incoming := filepath.Join(dir, "incoming.csv")
	require.NoError(t, os.WriteFile(data, []byte("code,name\nIT,Italy\n"), 0o644))
	require.NoError(t, os.WriteFile(incoming, []byte("code,name\nIT,Italy\nFR,France\nDE,Germany\n"), 0o644))
	if source == "" {
		source = incoming
	}

	yaml := fmt.Sprintf(`refresh:
  timezone: UTC
  load_on_start: true
files:
  - path: %s
    type: country
tasks:
  - name: countries
    type: copy
    interval: 24h
    affected_types: [country]
    properties:
      source: %s
      path: %s
`, data, source, data)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "go_refresh dev")

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestReloadCommand(t *testing.T) {
	dir := writeProject(t, "")

	out, err := execute(t, "--config-dir", dir, "reload")
	require.NoError(t, err)
	assert.Equal(t, "country\t1\n", out)
}

func TestUpdateCommand(t *testing.T) {
	dir := writeProject(t, "")

	_, err := execute(t, "--config-dir", dir, "update")
	require.NoError(t, err)

	out, err := execute(t, "--config-dir", dir, "reload", "country")
	require.NoError(t, err)
	assert.Equal(t, "country\t3\n", out)
}

func TestUpdateCommand_FailsOnTaskError(t *testing.T) {
	dir := writeProject(t, filepath.Join(t.TempDir(), "missing.csv"))

	_, err := execute(t, "--config-dir", dir, "update")

	var cycleErr *orchestrator.CycleError
	require.True(t, errors.As(err, &cycleErr), "expected cycle error, got %v", err)
	assert.Equal(t, "countries", cycleErr.Results[0].Task)
}

func TestUpdateCommand_UnknownTask(t *testing.T) {
	dir := writeProject(t, "")

	_, err := execute(t, "--config-dir", dir, "update", "--task", "ghost")
	assert.True(t, errors.Is(err, orchestrator.ErrTaskNotFound))
}
