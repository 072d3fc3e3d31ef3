// Package dom describes the slice of the host page the render loop touches.
//
// The host owns the markup; implementations only look elements up with the
// selectors below, set inline styles and inject one marker cell per grid row.
package dom

import (
	"context"
	"errors"
)

// Host markup contract.
const (
	// TaskBarSelector matches a timeline bar; the task id is in data-key.
	TaskBarSelector = "div.gantt-chart-task-bar"
	TaskBarKeyAttr  = "data-key"
	// ProgressClass marks the progress strip inside a task bar.
	ProgressClass = "task-bar-progress"
	// GridClass marks the schedule grid container.
	GridClass = "ScheduleGrid"
	// RowClass marks one grid row.
	RowClass = "grid-row"
	// NameCellSuffix is the id suffix of a row's name cell.
	NameCellSuffix = "_name"
	// CellContentClass is the host's class for cell content wrappers.
	CellContentClass = "grid-cell-content"
	// DefaultMarkerClass tags the cells injected by the render loop.
	DefaultMarkerClass = "CF_labels"
)

// ErrGridNotFound is returned by Rows when the schedule grid is not on the
// page, typically because the user is on another view.
var ErrGridNotFound = errors.New("schedule grid not found")

// BarStyle is the inline styling applied to one task bar.
type BarStyle struct {
	Background string
	Border     string
	Progress   string
}

// Surface is the host page as seen by the render loop.
type Surface interface {
	// PaintTaskBar styles the bar whose data-key equals taskKey. It reports
	// false, without error, when no such bar is rendered.
	PaintTaskBar(ctx context.Context, taskKey string, style BarStyle) (bool, error)
	// Rows lists the schedule grid rows, or ErrGridNotFound.
	Rows(ctx context.Context) ([]Row, error)
}

// Row is one schedule grid row.
type Row interface {
	// Annotated reports whether the row already holds a marker cell.
	Annotated(ctx context.Context, markerClass string) (bool, error)
	// Name returns the text of the row's name cell; false when the row has
	// no name cell.
	Name(ctx context.Context) (string, bool, error)
	// InjectCell inserts a gridcell wrapping a content div with the given
	// classes and inner HTML, immediately before the row's last child.
	InjectCell(ctx context.Context, contentClass string, innerHTML string) error
}
