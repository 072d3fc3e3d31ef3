package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"plannercolors/internal/aggregator"
	"plannercolors/internal/dom"
	"plannercolors/internal/dom/htmldoc"
	"plannercolors/internal/model"
	"plannercolors/internal/palette"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const timelinePage = `<html><body>
<div class="gantt-chart-task-bar" data-key="1"><div class="task-bar-progress"></div></div>
<div class="ScheduleGrid">
<div class="grid-row" id="r1"><div role="gridcell" id="1_name">A</div><div role="gridcell" id="r1_end"></div></div>
<div class="grid-row" id="r2"><div role="gridcell" id="2_name">Ghost</div><div role="gridcell"></div></div>
</div>
</body></html>`

func loadedAggregator(t *testing.T) *aggregator.Aggregator {
	t.Helper()
	agg := aggregator.New()
	agg.UpdateTasks(0, []model.Task{{ID: model.IntID(1), Name: "A", BucketID: model.IntID(9)}})
	agg.UpdateBuckets(0, []model.Bucket{{ID: model.IntID(9), Color: 3}})
	agg.UpdateLabels(0, []model.Label{{ID: model.IntID(5), Text: "Urgent", Index: 0}})
	agg.UpdateLabelAssociations(0, []model.LabelAssociation{{TaskID: model.IntID(1), LabelID: model.IntID(5)}})
	require.True(t, agg.Ready())
	return agg
}

func TestTickPaintsAndInjects(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	loop := New(loadedAggregator(t), palette.NewAllocator(), doc, Options{})

	report := loop.Tick(context.Background())
	assert.Equal(t, 1, report.Painted)
	assert.Equal(t, 2, report.Injected)
	assert.False(t, report.GridMissing)
	assert.Zero(t, report.Errors)

	assert.Equal(t, "rgb(245, 237, 206)", doc.Style("1", "background-color"))
	assert.Equal(t, "rgb(225, 217, 186)", doc.Style("1", "border-color"))
	assert.Equal(t, "rgb(225, 217, 186)", doc.ProgressStyle("1", "background-color"))

	out := doc.String()
	assert.Contains(t, out, ">Urgent</div>")
	assert.Contains(t, out, "background-color: rgb(255, 255, 255)")
	assert.Contains(t, out, "border-color: rgb(235, 235, 235)")
	assert.Contains(t, out, "color: rgb(175, 175, 175)")
	assert.Equal(t, 1, doc.MarkerCells("r1", dom.DefaultMarkerClass))
	// Unmatched rows still get an empty marker cell outside debug mode.
	assert.Equal(t, 1, doc.MarkerCells("r2", dom.DefaultMarkerClass))
	assert.NotContains(t, out, "Not found")
}

func TestTickIsIdempotent(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	loop := New(loadedAggregator(t), palette.NewAllocator(), doc, Options{})

	loop.Tick(context.Background())
	before := doc.String()
	report := loop.Tick(context.Background())

	assert.Equal(t, 2, report.RowsSkipped)
	assert.Zero(t, report.Injected)
	assert.Equal(t, before, doc.String())
	assert.Equal(t, 1, strings.Count(doc.String(), "Urgent"))
	assert.EqualValues(t, 2, loop.Ticks())
}

func TestTickDebugPlaceholder(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	loop := New(loadedAggregator(t), palette.NewAllocator(), doc, Options{Debug: true, MarkerClass: "X_marker"})

	loop.Tick(context.Background())
	assert.Contains(t, doc.String(), "Not found")
	assert.Equal(t, 1, doc.MarkerCells("r2", "X_marker"))
}

func TestTickWithoutGridStillPaints(t *testing.T) {
	doc, err := htmldoc.ParseString(`<div class="gantt-chart-task-bar" data-key="1"></div>`)
	require.NoError(t, err)
	loop := New(loadedAggregator(t), palette.NewAllocator(), doc, Options{})

	report := loop.Tick(context.Background())
	assert.True(t, report.GridMissing)
	assert.Equal(t, 1, report.Painted)
	assert.Zero(t, report.Errors)
}

func TestTickBeforeReady(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	agg := aggregator.New()
	agg.UpdateTasks(0, []model.Task{{ID: model.IntID(1), Name: "A", BucketID: model.IntID(9)}})
	colors := palette.NewAllocator()
	before := colors.Remaining()

	loop := New(agg, colors, doc, Options{})
	report := loop.Tick(context.Background())

	assert.True(t, report.NotReady)
	assert.Zero(t, report.Painted)
	assert.Zero(t, report.Injected)
	assert.Empty(t, doc.Style("1", "background-color"))
	assert.Zero(t, doc.MarkerCells("r1", dom.DefaultMarkerClass))
	assert.Zero(t, doc.MarkerCells("r2", dom.DefaultMarkerClass))
	assert.Equal(t, before, colors.Remaining(), "no fallback color is spent while loading")
}

func TestLabelsAppearOnceLoaded(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	agg := aggregator.New()
	agg.UpdateTasks(1, []model.Task{{ID: model.IntID(1), Name: "A", BucketID: model.IntID(9)}})
	agg.UpdateBuckets(1, []model.Bucket{{ID: model.IntID(9), Color: 3}})
	agg.UpdateLabels(1, []model.Label{})
	agg.UpdateLabelAssociations(1, []model.LabelAssociation{})
	loop := New(agg, palette.NewAllocator(), doc, Options{})

	report := loop.Tick(context.Background())
	require.True(t, report.NotReady)
	assert.Zero(t, doc.MarkerCells("r1", dom.DefaultMarkerClass))

	agg.UpdateLabels(2, []model.Label{{ID: model.IntID(5), Text: "Urgent", Index: 0}})
	agg.UpdateLabelAssociations(2, []model.LabelAssociation{{TaskID: model.IntID(1), LabelID: model.IntID(5)}})
	report = loop.Tick(context.Background())
	assert.False(t, report.NotReady)
	assert.Equal(t, 1, report.Painted)
	assert.Equal(t, 1, doc.MarkerCells("r1", dom.DefaultMarkerClass))
	assert.Contains(t, doc.String(), ">Urgent</div>")
}

func TestTickSkipsUncoloredBars(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	colors := palette.NewAllocator()
	for colors.Remaining() > 0 {
		colors.ForLabelIndex(-1)
	}
	agg := loadedAggregator(t)
	agg.UpdateTasks(0, []model.Task{{ID: model.IntID(1), Name: "A", BucketID: model.IntID(77)}})

	report := New(agg, colors, doc, Options{}).Tick(context.Background())
	assert.Equal(t, 1, report.Uncolored)
	assert.Zero(t, report.Painted)
	assert.Empty(t, doc.Style("1", "background-color"))
}

// failingSurface errors on every call.
type failingSurface struct{}

func (failingSurface) PaintTaskBar(context.Context, string, dom.BarStyle) (bool, error) {
	return false, errors.New("detached")
}

func (failingSurface) Rows(context.Context) ([]dom.Row, error) {
	return nil, errors.New("detached")
}

func TestTickCountsSurfaceErrors(t *testing.T) {
	report := New(loadedAggregator(t), palette.NewAllocator(), failingSurface{}, Options{}).Tick(context.Background())
	assert.Equal(t, 2, report.Errors)
	assert.False(t, report.GridMissing)
}

// panickingSurface panics while listing rows.
type panickingSurface struct{ failingSurface }

func (panickingSurface) Rows(context.Context) ([]dom.Row, error) {
	panic("boom")
}

func TestLoopStartsOnceAndSurvivesPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var reports []TickReport
	loop := New(loadedAggregator(t), palette.NewAllocator(), panickingSurface{}, Options{
		Interval: 5 * time.Millisecond,
		OnTick: func(r TickReport) {
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		},
	})

	require.True(t, loop.Start(ctx))
	assert.False(t, loop.Start(ctx), "second start is a no-op")
	assert.True(t, loop.Started())

	require.Eventually(t, func() bool { return loop.Ticks() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, reports, "panicking ticks never report")
}

func TestLoopRendersOnSchedule(t *testing.T) {
	doc, err := htmldoc.ParseString(timelinePage)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := New(loadedAggregator(t), palette.NewAllocator(), doc, Options{Interval: 5 * time.Millisecond})
	loop.Start(ctx)

	require.Eventually(t, func() bool {
		return doc.MarkerCells("r1", dom.DefaultMarkerClass) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-loop.Done()
	assert.Equal(t, 1, doc.MarkerCells("r1", dom.DefaultMarkerClass))
}
