package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportPrintsEvents(t *testing.T) {
	csv := writeFile(t, "sales.csv", "region,q1,q2\nnorth,1,2\nsouth,3,4\n")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"xrvis", "--log-level", "error", "import", csv}))

	assert.Contains(t, out.String(), "EVENT")
	assert.Contains(t, out.String(), "NodeAdded")
	assert.Contains(t, out.String(), "sales.csv/")
}

func TestImportRequiresFiles(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"xrvis", "--log-level", "error", "import"})
	assert.ErrorIs(t, err, errNoFiles)
}

func TestImportChartKinds(t *testing.T) {
	csv := writeFile(t, "sales.csv", "region,q1,q2\nnorth,1,2\nsouth,3,4\n")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"xrvis", "--log-level", "error", "--chart", "line", "import", csv}))
	assert.Contains(t, out.String(), "sales.csv/line")

	app = newApp()
	app.Writer = &bytes.Buffer{}
	assert.ErrorContains(t, app.Run([]string{"xrvis", "--log-level", "error", "--chart", "radar", "import", csv}), "unknown chart kind")
}

func TestRejectsInvalidConfig(t *testing.T) {
	cfg := writeFile(t, "xrvis.toml", "[device]\nbackend = \"metal\"\n")
	app := newApp()
	app.Writer = &bytes.Buffer{}
	assert.Error(t, app.Run([]string{"xrvis", "--config", cfg, "import", "x.csv"}))
}

func TestRunRendersChart(t *testing.T) {
	csv := writeFile(t, "sales.csv", "region,q1\nnorth,1\nsouth,3\n")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"xrvis", "--log-level", "error", "run", "--frames", "0", "--timeout", "10s", csv}))

	assert.Contains(t, out.String(), "Rendered")
	assert.Contains(t, out.String(), "lit")
}

func TestBakeBakesEveryNode(t *testing.T) {
	csv := writeFile(t, "sales.csv", "region,q1\nnorth,1\nsouth,3\n")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"xrvis", "--log-level", "error",
		"bake", "--resolution", "2", "--samples", "1", "--timeout", "10s", csv}))

	assert.Contains(t, out.String(), "Rendered")
	assert.NotContains(t, out.String(), "Baking")
}
