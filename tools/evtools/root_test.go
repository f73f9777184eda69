package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "evtools.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"tesla", "rivian", "solar", "weather", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestVehicle_BadDay(t *testing.T) {
	_, err := execute(t, "tesla", "--day", "2023-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --day")
}

func TestVehicle_NeedsOperation(t *testing.T) {
	path := writeConfig(t, `{"tesla": {"name": "Blue"}}`)
	_, err := execute(t, "tesla", "--config", path, "--debug")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")
}

func TestVehicle_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `{"rivian": {"name": ""}}`)
	_, err := execute(t, "rivian", "--config", path, "--report")
	assert.Error(t, err)
}

func TestSolar_DailyNeedsProduction(t *testing.T) {
	_, err := execute(t, "solar", "--daily")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--production")
}

func TestVehicle_ReportFromStoredHistory(t *testing.T) {
	dir := t.TempDir()
	history := filepath.Join(dir, "tesla.json")
	require.NoError(t, os.WriteFile(history, []byte(`{"daily_state_am": {"20230301": {"odometer": 100, "charge_energy_added": 12.5}}}`), 0644))
	path := writeConfig(t, `{"tesla": {"name": "Blue", "datafile": "`+history+`", "lockfile": "`+filepath.Join(dir, "tesla.lock")+`", "reportsince": ""}}`)

	out, err := execute(t, "tesla", "--config", path, "--debug", "--report")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Energy Added: 12.50 kW")
}

func TestConfigCommand(t *testing.T) {
	path := writeConfig(t, `{"mastodon": {"server": "https://example.social", "token": "hunter2"}}`)
	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.social")
	assert.NotContains(t, out, "hunter2")
}
