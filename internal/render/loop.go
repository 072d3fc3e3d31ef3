// Package render re-applies bucket colors and label chips to the host page on
// a fixed interval.
//
// The host rebuilds its DOM at will, so every tick starts from scratch: bars
// are repainted and unmarked grid rows get a label cell. A row already holding
// a marker cell is left alone.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"plannercolors/internal/aggregator"
	"plannercolors/internal/dom"
	"plannercolors/internal/logging"
	"plannercolors/internal/palette"
)

// DefaultInterval is the tick period.
const DefaultInterval = 500 * time.Millisecond

// Options tune the loop.
type Options struct {
	Interval    time.Duration
	MarkerClass string
	// Debug writes a "Not found" placeholder into rows that match no task.
	Debug bool
	// OnTick, when set, receives every tick report.
	OnTick func(TickReport)
}

// TickReport summarises one tick.
type TickReport struct {
	Tick        uint64
	Version     uint64
	Painted     int
	BarsMissing int
	Uncolored   int
	Injected    int
	RowsSkipped int
	GridMissing bool
	Errors      int

	// NotReady is set when the collections were still loading and both
	// passes were skipped.
	NotReady bool
}

// Loop drives the two render passes.
type Loop struct {
	view    aggregator.View
	colors  *palette.Allocator
	surface dom.Surface
	opts    Options

	started atomic.Bool
	ticks   atomic.Uint64
	done    chan struct{}
}

// New builds a loop; it does nothing until Start or Tick.
func New(view aggregator.View, colors *palette.Allocator, surface dom.Surface, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MarkerClass == "" {
		opts.MarkerClass = dom.DefaultMarkerClass
	}
	return &Loop{
		view:    view,
		colors:  colors,
		surface: surface,
		opts:    opts,
		done:    make(chan struct{}),
	}
}

// Start launches the ticker goroutine. Only the first call has an effect;
// it reports whether this call started the loop. The loop runs until ctx
// is cancelled.
func (l *Loop) Start(ctx context.Context) bool {
	if !l.started.CompareAndSwap(false, true) {
		return false
	}
	logging.Render("Render loop started (interval %v)", l.opts.Interval)
	go l.run(ctx)
	return true
}

// Started reports whether Start has been called.
func (l *Loop) Started() bool { return l.started.Load() }

// Done is closed once a started loop has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Ticks is the number of ticks run so far, including ones that panicked.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Render("Render loop stopped after %d ticks", l.Ticks())
			return
		case <-ticker.C:
			l.safeTick(ctx)
		}
	}
}

// safeTick keeps a failing tick from ending the loop.
func (l *Loop) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryRender).Error("tick panicked: %v", r)
		}
	}()
	timer := logging.StartTimer(logging.CategoryRender, "tick")
	defer timer.StopWithThreshold(l.opts.Interval)
	l.Tick(ctx)
}

// Tick runs the timeline coloring pass and the label injection pass once.
// Nothing is touched until the snapshot is ready: a marked row is never
// revisited, so injecting early would pin it without its chips.
func (l *Loop) Tick(ctx context.Context) TickReport {
	snap := l.view.Snapshot()
	report := TickReport{Tick: l.ticks.Add(1), Version: snap.Version()}

	if snap.Ready() {
		l.colorTimeline(ctx, snap, &report)
		l.injectLabels(ctx, snap, &report)
	} else {
		report.NotReady = true
	}

	logging.RenderDebug("tick %d: %+v", report.Tick, report)
	if l.opts.OnTick != nil {
		l.opts.OnTick(report)
	}
	return report
}

func (l *Loop) colorTimeline(ctx context.Context, snap *aggregator.Snapshot, report *TickReport) {
	for _, task := range snap.Tasks() {
		index := -1
		if b, ok := snap.Bucket(task.BucketID); ok {
			index = b.Color
		}
		color, ok := l.colors.ForBucket(task.BucketID.String(), index)
		if !ok {
			report.Uncolored++
			continue
		}
		painted, err := l.surface.PaintTaskBar(ctx, task.ID.String(), dom.BarStyle{
			Background: color.Background,
			Border:     color.Accent,
			Progress:   color.Accent,
		})
		switch {
		case err != nil:
			report.Errors++
			logging.RenderWarn("painting task %s: %v", task.ID, err)
		case painted:
			report.Painted++
		default:
			report.BarsMissing++
		}
	}
}

func (l *Loop) injectLabels(ctx context.Context, snap *aggregator.Snapshot, report *TickReport) {
	rows, err := l.surface.Rows(ctx)
	if errors.Is(err, dom.ErrGridNotFound) {
		report.GridMissing = true
		logging.RenderDebug("labels: not on timeline")
		return
	}
	if err != nil {
		report.Errors++
		logging.RenderWarn("listing grid rows: %v", err)
		return
	}

	for _, row := range rows {
		if err := l.injectRow(ctx, snap, row, report); err != nil {
			report.Errors++
			logging.RenderWarn("injecting labels: %v", err)
		}
	}
}

func (l *Loop) injectRow(ctx context.Context, snap *aggregator.Snapshot, row dom.Row, report *TickReport) error {
	marked, err := row.Annotated(ctx, l.opts.MarkerClass)
	if err != nil {
		return fmt.Errorf("check marker: %w", err)
	}
	if marked {
		report.RowsSkipped++
		return nil
	}

	name, ok, err := row.Name(ctx)
	if err != nil {
		return fmt.Errorf("read row name: %w", err)
	}
	if !ok {
		logging.RenderDebug("row with no name cell")
		return nil
	}

	var fragment string
	if task, found := snap.TaskByName(name); found {
		fragment = chipsHTML(l.colors, task.Labels)
	} else if l.opts.Debug {
		fragment = "Not found"
	}

	if err := row.InjectCell(ctx, dom.CellContentClass+" "+l.opts.MarkerClass, fragment); err != nil {
		return fmt.Errorf("insert cell for %q: %w", name, err)
	}
	report.Injected++
	return nil
}
