package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plannercolors/internal/aggregator"
	"plannercolors/internal/browser"
	"plannercolors/internal/config"
	"plannercolors/internal/model"
	"plannercolors/internal/palette"
)

const savedPage = `<html><body>
<div class="gantt-chart-task-bar" data-key="1"><div class="task-bar-progress"></div></div>
<div class="ScheduleGrid">
<div class="grid-row" id="r1"><div role="gridcell" id="1_name">Write report</div><div role="gridcell"></div></div>
</div>
</body></html>`

func setupCLI(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	timeout = time.Minute
	outPath = ""
	rawReport = false
}

func writePayloads(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"tasks.json":             `{"value":[{"id":"1","name":"Write report","bucketId":"9"},{"id":"2","name":"Review","bucketId":"8"}]}`,
		"buckets.json":           `[{"id":"9","name":"Doing","color":3}]`,
		"labels.json":            `[{"id":"5","text":"Urgent","index":0}]`,
		"labelassociations.json": `[{"taskId":"1","labelId":"5"}]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func commandWithOutput() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out, &errOut
}

func TestRenderWritesDecoratedPage(t *testing.T) {
	setupCLI(t)
	payloadDir = writePayloads(t)
	htmlPath = filepath.Join(t.TempDir(), "timeline.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(savedPage), 0o644))
	outPath = filepath.Join(t.TempDir(), "out.html")

	cmd, _, errOut := commandWithOutput()
	require.NoError(t, runRender(cmd, nil))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "background-color: rgb(245, 237, 206)")
	assert.Contains(t, page, "grid-cell-content CF_labels")
	assert.Contains(t, page, ">Urgent</div>")
	assert.Contains(t, errOut.String(), "painted 1 bars")
	assert.Contains(t, errOut.String(), "injected 1 label cells")
}

func TestRenderToStdout(t *testing.T) {
	setupCLI(t)
	payloadDir = writePayloads(t)
	htmlPath = filepath.Join(t.TempDir(), "timeline.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(savedPage), 0o644))

	cmd, out, _ := commandWithOutput()
	require.NoError(t, runRender(cmd, nil))
	assert.Contains(t, out.String(), "CF_labels")
}

func TestRenderIncompletePayloads(t *testing.T) {
	setupCLI(t)
	payloadDir = writePayloads(t)
	require.NoError(t, os.WriteFile(filepath.Join(payloadDir, "labels.json"), []byte(`[]`), 0o644))
	htmlPath = filepath.Join(t.TempDir(), "timeline.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(savedPage), 0o644))

	cmd, out, errOut := commandWithOutput()
	require.NoError(t, runRender(cmd, nil))
	assert.NotContains(t, out.String(), "CF_labels")
	assert.NotContains(t, out.String(), "background-color")
	assert.Contains(t, errOut.String(), "page left unchanged")
}

func TestRenderWithoutPayloads(t *testing.T) {
	setupCLI(t)
	payloadDir = t.TempDir()
	htmlPath = filepath.Join(payloadDir, "missing.html")

	cmd, _, _ := commandWithOutput()
	err := runRender(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payloads found")
}

func TestInspectRawReport(t *testing.T) {
	setupCLI(t)
	payloadDir = writePayloads(t)
	rawReport = true

	cmd, out, _ := commandWithOutput()
	require.NoError(t, runInspect(cmd, nil))

	report := out.String()
	assert.Contains(t, report, "**Status:** ready")
	assert.Contains(t, report, "| Tasks | 2 |")
	assert.Contains(t, report, "| 9 | Doing | 3 | `rgb(245, 237, 206)` | `rgb(225, 217, 186)` |")
	// Bucket 8 is unknown and takes the first fallback entry.
	assert.Contains(t, report, "| 8 | (unknown) | -1 | `#FFB3BA` | `#D81B60` |")
	assert.Contains(t, report, "| 5 | Urgent | 0 | `rgb(255, 255, 255)` | `rgb(175, 175, 175)` |")
	assert.Contains(t, report, "| 1 | Write report | 9 | Urgent |")
	assert.Contains(t, report, "| 2 | Review | 8 | - |")
}

func TestBuildReportBeforeReady(t *testing.T) {
	agg := aggregator.New()
	agg.UpdateTasks(0, []model.Task{{ID: "1", Name: "a|b", BucketID: "9"}})

	report := buildReport(agg.Snapshot(), palette.NewAllocator())
	assert.Contains(t, report, "**Status:** loading")
	assert.Contains(t, report, "_No labels._")
	assert.Contains(t, report, `a\|b`)
}

func TestBuildReportExhaustedFallback(t *testing.T) {
	agg := aggregator.New()
	var tasks []model.Task
	for i := range 11 {
		tasks = append(tasks, model.Task{ID: model.IntID(i), Name: "t", BucketID: model.IntID(100 + i)})
	}
	agg.UpdateTasks(0, tasks)

	report := buildReport(agg.Snapshot(), palette.NewAllocator())
	assert.Contains(t, report, "| 110 | (unknown) | -1 | none | none |")
}

func TestPaletteListsBothPools(t *testing.T) {
	setupCLI(t)
	cmd, out, _ := commandWithOutput()
	require.NoError(t, runPalette(cmd, nil))

	text := out.String()
	assert.Contains(t, text, "Curated palette")
	assert.Contains(t, text, "Fallback pool")
	assert.Contains(t, text, "rgb(245, 237, 206)")
	assert.Contains(t, text, "#FFB3BA")
	assert.Contains(t, text, "#A45A00")
	assert.Equal(t, palette.Size(), strings.Count(text, "accent"))
}

func TestConfigMapping(t *testing.T) {
	c := config.DefaultConfig()
	c.Browser.DebuggerURL = "ws://127.0.0.1:9222/devtools/browser/x"
	c.Browser.ViewportWidth = 0
	c.Browser.NavigationTimeout = "5s"
	c.Render.Interval = "250ms"
	c.Render.MarkerClass = "mine"
	c.Logging.DebugMode = true

	bc := browserConfig(c)
	assert.Equal(t, c.Browser.DebuggerURL, bc.DebuggerURL)
	assert.Equal(t, browser.DefaultConfig().Viewport.Width, bc.Viewport.Width, "zero keeps the default")
	assert.Equal(t, 5*time.Second, bc.NavigationTimeout)

	opts := renderOptions(c)
	assert.Equal(t, 250*time.Millisecond, opts.Interval)
	assert.Equal(t, "mine", opts.MarkerClass)
	assert.True(t, opts.Debug)
}
