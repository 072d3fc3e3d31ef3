package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"plannercolors/internal/aggregator"
)

// RefreshInterval is how often the page re-reads the aggregator.
const RefreshInterval = 250 * time.Millisecond

type refreshMsg time.Time

// ModelPage shows the live joined model: one row per task with its bucket
// color index and label texts.
type ModelPage struct {
	view   aggregator.View
	source string

	width  int
	height int
	table  table.Model

	snap     *aggregator.Snapshot
	rows     []table.Row
	filtered []table.Row

	filterInput   textinput.Model
	filterFocused bool

	styles Styles
}

// NewModelPage creates the page over view. source names where the data
// comes from, for the header.
func NewModelPage(view aggregator.View, source string) ModelPage {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 12},
			{Title: "Name", Width: 32},
			{Title: "Bucket", Width: 12},
			{Title: "Color", Width: 6},
			{Title: "Labels", Width: 36},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	fi := textinput.New()
	fi.Placeholder = "Filter by name or label..."
	fi.CharLimit = 50
	fi.Width = 40

	m := ModelPage{
		view:        view,
		source:      source,
		table:       t,
		filterInput: fi,
		styles:      DefaultStyles(),
	}
	m.refresh()
	return m
}

func refreshCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init starts the refresh ticker.
func (m ModelPage) Init() tea.Cmd {
	return refreshCmd()
}

// Update handles messages.
func (m ModelPage) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case refreshMsg:
		m.refresh()
		return m, refreshCmd()
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !m.filterFocused {
				return m, tea.Quit
			}
		case "/":
			m.filterFocused = !m.filterFocused
			if m.filterFocused {
				m.filterInput.Focus()
			} else {
				m.filterInput.Blur()
			}
			return m, nil
		case "esc", "enter":
			if m.filterFocused {
				m.filterFocused = false
				m.filterInput.Blur()
				m.applyFilter()
				return m, nil
			}
		}
	}

	if m.filterFocused {
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.applyFilter()
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// refresh rebuilds the rows when the snapshot changed.
func (m *ModelPage) refresh() {
	snap := m.view.Snapshot()
	if m.snap != nil && snap.Version() == m.snap.Version() {
		return
	}
	m.snap = snap

	m.rows = make([]table.Row, 0, len(snap.Tasks()))
	for _, task := range snap.Tasks() {
		color := "-"
		if b, ok := snap.Bucket(task.BucketID); ok {
			color = fmt.Sprint(b.Color)
		}
		texts := make([]string, 0, len(task.Labels))
		for _, l := range task.Labels {
			texts = append(texts, l.Text)
		}
		m.rows = append(m.rows, table.Row{
			task.ID.String(),
			task.Name,
			task.BucketID.String(),
			color,
			strings.Join(texts, ", "),
		})
	}
	m.applyFilter()
}

func (m *ModelPage) applyFilter() {
	filterText := strings.ToLower(m.filterInput.Value())
	m.filtered = make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		if filterText != "" &&
			!strings.Contains(strings.ToLower(r[1]), filterText) &&
			!strings.Contains(strings.ToLower(r[4]), filterText) {
			continue
		}
		m.filtered = append(m.filtered, r)
	}
	m.table.SetRows(m.filtered)
}

// Rows returns the rows currently shown.
func (m ModelPage) Rows() []table.Row {
	return m.filtered
}

// View renders the page.
func (m ModelPage) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Header.Render(" Planner Model ") + "  " + m.styles.Muted.Render(m.source) + "\n\n")

	c := m.snap.Counts()
	status := m.styles.Warning.Render("loading")
	if m.snap.Ready() {
		status = m.styles.Success.Render("ready")
	}
	sb.WriteString(fmt.Sprintf("%s  tasks %d | buckets %d | labels %d | associations %d | v%d\n\n",
		status, c.Tasks, c.Buckets, c.Labels, c.Associations, m.snap.Version()))

	filterStyle := m.styles.Filter
	if m.filterFocused {
		filterStyle = filterStyle.BorderForeground(m.styles.Theme.Primary)
	}
	sb.WriteString(filterStyle.Render(m.filterInput.View()))
	sb.WriteString("  " + m.styles.Muted.Render("[/] Filter  [q] Quit") + "\n\n")

	sb.WriteString(m.styles.Content.Render(m.table.View()))

	if len(m.filtered) != len(m.rows) {
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("\nShowing %d of %d tasks", len(m.filtered), len(m.rows))))
	}
	return sb.String()
}

// SetSize updates the size.
func (m *ModelPage) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.table.SetWidth(max(w-4, 20))
	m.table.SetHeight(max(h-10, 3))
}
