package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/pushgp/experiments/regression"
	"github.com/chazu/pushgp/manifest"
)

const smallExperiment = `
[engine]
seed = 5
max-points-in-random-expressions = 20

[world]
islands = 2
individuals-per-island = 12
generations-between-migrations = 1
individuals-migrating = 2

[run]
generations = 3
max-steps = 50
cases = 4

[history]
database = "runs.db"
`

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeExperiment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.toml")
	require.NoError(t, os.WriteFile(path, []byte(smallExperiment), 0644))
	return path
}

// ---------------------------------------------------------------------------
// fmt
// ---------------------------------------------------------------------------

func TestFormat(t *testing.T) {
	table, err := regression.NewTable()
	require.NoError(t, err)

	tests := []struct {
		in, want string
	}{
		{"(1 2.50 INTEGER.SUM)", "( 1 2.5 INTEGER.SUM )"},
		{"  ( (  ) TRUE  x )\n", "( ( ) TRUE x )"},
		{"INPUT.X", "INPUT.X"},
		{"3.", "3."},
	}
	for _, tt := range tests {
		got, err := Format(table, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)

		again, err := Format(table, got)
		require.NoError(t, err)
		assert.Equal(t, got, again, "not idempotent")
	}

	_, err = Format(table, "( 1 2")
	assert.Error(t, err)
}

func TestFmtCommand(t *testing.T) {
	out, err := execute(t, "", "fmt", "(", "1", "INTEGER.DUP)")
	require.NoError(t, err)
	assert.Equal(t, "( 1 INTEGER.DUP )\n", out)

	out, err = execute(t, "( TRUE\n  FALSE )\n", "fmt")
	require.NoError(t, err)
	assert.Equal(t, "( TRUE FALSE )\n", out)

	_, err = execute(t, "", "fmt", ")")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// exec
// ---------------------------------------------------------------------------

func TestExecCommand(t *testing.T) {
	out, err := execute(t, "", "exec", "( 2 3 INTEGER.PRODUCT TRUE )")
	require.NoError(t, err)
	assert.Contains(t, out, "exit: normal steps: 5")
	assert.Contains(t, out, "INTEGER: ( 6 )")
	assert.Contains(t, out, "BOOL:    ( TRUE )")
	assert.Contains(t, out, "EXEC:    ( )")

	out, err = execute(t, "", "exec", "--steps", "3", "( 1 EXEC.Y INTEGER.DUP )")
	require.NoError(t, err)
	assert.Contains(t, out, "exit: step-limit steps: 3")

	_, err = execute(t, "", "exec")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// run, history, weights
// ---------------------------------------------------------------------------

func TestRunAndHistory(t *testing.T) {
	path := writeExperiment(t)

	out, err := execute(t, "", "run", "--config", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "generation "), lines[0])
	assert.Contains(t, lines[0], "error=")
	assert.True(t, strings.HasPrefix(lines[1], "(") || !strings.Contains(lines[1], " "), lines[1])

	out, err = execute(t, "", "history", "--config", path)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, rows, 2)
	fields := strings.Fields(rows[1])
	runID := fields[0]

	out, err = execute(t, "", "history", "--db", filepath.Join(filepath.Dir(path), "runs.db"), runID)
	require.NoError(t, err)
	assert.Contains(t, out, "island-0")
	assert.Contains(t, out, "island-1")
}

func TestRunIsReproducible(t *testing.T) {
	path := writeExperiment(t)
	first, err := execute(t, "", "run", "--config", path, "--generations", "2")
	require.NoError(t, err)
	second, err := execute(t, "", "run", "--config", path, "--generations", "2")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunRejectsBadOverride(t *testing.T) {
	path := writeExperiment(t)
	_, err := execute(t, "", "run", "--config", path, "--generations", "0")
	assert.Error(t, err)
}

func TestHistoryNeedsDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  generations: 1\n"), 0644))
	_, err := execute(t, "", "history", "--config", path)
	assert.Error(t, err)
}

func TestWeightsCommand(t *testing.T) {
	path := writeExperiment(t)
	out, err := execute(t, "", "weights", "--config", path, "--runs", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[engine.weights]")

	m, err := manifest.Parse([]byte(out), ".toml")
	require.NoError(t, err)
	assert.NotContains(t, m.Engine.Weights, "__PUSH.LIST")

	_, err = execute(t, "", "weights", "--config", path, "--runs", "0")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// logging and metrics
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "island", "a")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"island":"a"`)

	_, err = newLogger(io.Discard, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(io.Discard, "info", "xml")
	assert.Error(t, err)

	_, err = execute(t, "", "--log-format", "xml", "fmt", "1")
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	addr, shutdown, err := serveMetrics("127.0.0.1:0")
	require.NoError(t, err)
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pushgp_world_generations_total")
}
