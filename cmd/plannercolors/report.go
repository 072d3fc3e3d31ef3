package main

import (
	"fmt"
	"strings"

	"plannercolors/internal/aggregator"
	"plannercolors/internal/model"
	"plannercolors/internal/palette"
)

// buildReport describes a snapshot as markdown. Colors are drawn from
// colors in the same order a render tick would draw them, so fallback
// assignments match what the timeline shows.
func buildReport(snap *aggregator.Snapshot, colors *palette.Allocator) string {
	var sb strings.Builder

	c := snap.Counts()
	status := "loading"
	if snap.Ready() {
		status = "ready"
	}
	sb.WriteString("# Planner model\n\n")
	fmt.Fprintf(&sb, "**Status:** %s (version %d)\n\n", status, snap.Version())
	sb.WriteString("| Collection | Records |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Tasks | %d |\n| Buckets | %d |\n| Labels | %d |\n| Associations | %d |\n\n",
		c.Tasks, c.Buckets, c.Labels, c.Associations)

	tasks := snap.Tasks()

	sb.WriteString("## Buckets\n\n")
	seen := make(map[model.ID]bool)
	rows := 0
	for _, t := range tasks {
		if seen[t.BucketID] {
			continue
		}
		seen[t.BucketID] = true
		index := -1
		name := "(unknown)"
		if b, ok := snap.Bucket(t.BucketID); ok {
			index = b.Color
			if b.Name != "" {
				name = b.Name
			}
		}
		if rows == 0 {
			sb.WriteString("| Bucket | Name | Index | Background | Accent |\n|---|---|---|---|---|\n")
		}
		rows++
		color, ok := colors.ForBucket(t.BucketID.String(), index)
		fmt.Fprintf(&sb, "| %s | %s | %d | %s | %s |\n",
			cell(t.BucketID.String()), cell(name), index, colorCell(color.Background, ok), colorCell(color.Accent, ok))
	}
	if rows == 0 {
		sb.WriteString("_No tasks reference a bucket._\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Labels\n\n")
	labels := snap.Labels()
	if len(labels) == 0 {
		sb.WriteString("_No labels._\n")
	} else {
		sb.WriteString("| Label | Text | Index | Background | Text color |\n|---|---|---|---|---|\n")
		for _, l := range labels {
			color, ok := colors.ForLabelIndex(l.Index)
			fmt.Fprintf(&sb, "| %s | %s | %d | %s | %s |\n",
				cell(l.ID.String()), cell(l.Text), l.Index, colorCell(color.Background, ok), colorCell(color.Text, ok))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Tasks\n\n")
	if len(tasks) == 0 {
		sb.WriteString("_No tasks._\n")
		return sb.String()
	}
	sb.WriteString("| Task | Name | Bucket | Labels |\n|---|---|---|---|\n")
	for _, t := range tasks {
		texts := make([]string, 0, len(t.Labels))
		for _, l := range t.Labels {
			texts = append(texts, l.Text)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
			cell(t.ID.String()), cell(t.Name), cell(t.BucketID.String()), cell(strings.Join(texts, ", ")))
	}
	return sb.String()
}

func colorCell(css string, ok bool) string {
	if !ok {
		return "none"
	}
	if css == "" {
		return "-"
	}
	return "`" + css + "`"
}

// cell keeps a value from breaking the markdown table.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
