package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "schelling version "+version)
}

func TestRunCmd_Summary(t *testing.T) {
	out, err := execute(t, "run", "--size", "80", "--radius", "2", "--seed", "11", "--layout")
	require.NoError(t, err)
	assert.Contains(t, out, "seed:      11")
	assert.Contains(t, out, "80 tracts, radius 2")
	assert.Contains(t, out, "outcome:")
	assert.Contains(t, out, "layout:")
}

func TestRunCmd_ZeroToleranceJSON(t *testing.T) {
	out, err := execute(t, "run", "--size", "10", "--radius", "2", "--occupancy", "1",
		"--max-tolerance", "0", "--seed", "1", "--json", "--fail-on-stall")
	require.NoError(t, err)

	var got struct {
		Outcome string `json:"outcome"`
		Moves   int    `json:"moves"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "settled", got.Outcome)
	assert.Zero(t, got.Moves)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--size", "4", "--radius", "2")
	assert.Error(t, err)
}

func TestRunCmd_RecordsAndListsRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--size", "60", "--radius", "2", "--seed", "3", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "recorded:")

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "60")
}

func TestRunsCmd_RequiresDB(t *testing.T) {
	t.Setenv("SCHELLING_DB", "")
	_, err := execute(t, "runs")
	assert.Error(t, err)
}

func TestSweepCmd(t *testing.T) {
	out, err := execute(t, "sweep", "--size", "60", "--radius", "2", "--seed", "5",
		"--from", "0", "--to", "0.4", "--step", "0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "MAX_TOL")
	assert.Contains(t, out, "0.000")
	assert.Contains(t, out, "0.400")
}

func TestConfigCmd(t *testing.T) {
	out, err := execute(t, "config", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "neighbor_radius: 3")
	assert.Contains(t, out, "level: debug")
}

func TestRunCmd_EmptyCityReportsNoAverages(t *testing.T) {
	out, err := execute(t, "run", "--size", "20", "--radius", "2", "--occupancy", "0", "--seed", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "avg_tolerance=n/a")
	assert.Contains(t, out, "mean_homogeneity=n/a")
	assert.NotContains(t, out, "avg_tolerance=0.000")
}

func TestJSONOutputUsesSnakeCaseKeys(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--size", "40", "--radius", "2", "--seed", "9", "--json", "--db", dbPath)
	require.NoError(t, err)
	var run struct {
		Config map[string]any `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Contains(t, run.Config, "neighbor_radius")
	assert.NotContains(t, run.Config, "NeighborRadius")

	out, err = execute(t, "runs", "--json", "--db", dbPath)
	require.NoError(t, err)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0], "created_at")
	assert.Contains(t, runs[0], "final_unhappy")
	assert.NotContains(t, runs[0], "CreatedAtUnix")
	assert.NotContains(t, runs[0], "Size")

	out, err = execute(t, "sweep", "--size", "40", "--radius", "2", "--seed", "9",
		"--from", "0.2", "--to", "0.2", "--step", "0.1", "--json")
	require.NoError(t, err)
	var points []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 1)
	assert.Contains(t, points[0], "max_tolerance")
	assert.Contains(t, points[0], "outcome")
	assert.Contains(t, points[0], "final")
}
