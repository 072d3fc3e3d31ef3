package render

import (
	"fmt"
	"html"
	"strings"

	"plannercolors/internal/model"
	"plannercolors/internal/palette"
)

const chipBaseStyle = "margin-left: 2px; margin-right: 2px; padding-left: 3px; padding-right: 3px; " +
	"border-radius: 3px; border: 1pt solid black; min-width: 30px; height: 21px;"

// chipsHTML renders one chip per label, colored through the label index
// path of the allocator. Labels without a color keep the plain chip style.
func chipsHTML(colors *palette.Allocator, labels []model.Label) string {
	var sb strings.Builder
	for _, l := range labels {
		style := chipBaseStyle
		if c, ok := colors.ForLabelIndex(l.Index); ok {
			style += fmt.Sprintf(" background-color: %s; border-color: %s;", c.Background, c.Accent)
			if c.Text != "" {
				style += fmt.Sprintf(" color: %s;", c.Text)
			}
		}
		fmt.Fprintf(&sb, `<div style="%s">%s</div>`, html.EscapeString(style), html.EscapeString(l.Text))
	}
	return sb.String()
}
