// Package htmldoc implements dom.Surface over an in-memory x/net/html tree.
// It backs the offline render command and the render loop tests.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"plannercolors/internal/dom"
)

// Document is a parsed HTML page. All access goes through its lock so a
// simulated host can rebuild parts of the tree between ticks.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

var _ dom.Surface = (*Document)(nil)

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for literals.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render writes the current tree.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the current tree, or an empty string on failure.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}

// PaintTaskBar implements dom.Surface.
func (d *Document) PaintTaskBar(_ context.Context, taskKey string, style dom.BarStyle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	barClass := strings.TrimPrefix(dom.TaskBarSelector, "div.")
	bar := find(d.root, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, barClass) && attr(n, dom.TaskBarKeyAttr) == taskKey
	})
	if bar == nil {
		return false, nil
	}
	setStyle(bar, "border-color", style.Border)
	setStyle(bar, "background-color", style.Background)
	if progress := find(bar, func(n *html.Node) bool { return hasClass(n, dom.ProgressClass) }); progress != nil {
		setStyle(progress, "background-color", style.Progress)
	}
	return true, nil
}

// Rows implements dom.Surface.
func (d *Document) Rows(_ context.Context) ([]dom.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	grid := find(d.root, func(n *html.Node) bool { return hasClass(n, dom.GridClass) })
	if grid == nil {
		return nil, dom.ErrGridNotFound
	}
	var rows []dom.Row
	walk(grid, func(n *html.Node) {
		if hasClass(n, dom.RowClass) {
			rows = append(rows, &row{doc: d, node: n})
		}
	})
	return rows, nil
}

type row struct {
	doc  *Document
	node *html.Node
}

func (r *row) Annotated(_ context.Context, markerClass string) (bool, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return find(r.node, func(n *html.Node) bool { return hasClass(n, markerClass) }) != nil, nil
}

func (r *row) Name(_ context.Context) (string, bool, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	cell := find(r.node, func(n *html.Node) bool {
		return strings.HasSuffix(attr(n, "id"), dom.NameCellSuffix)
	})
	if cell == nil {
		return "", false, nil
	}
	return innerText(cell), true, nil
}

func (r *row) InjectCell(_ context.Context, contentClass, innerHTML string) error {
	content := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "class", Val: contentClass}},
	}
	children, err := html.ParseFragment(strings.NewReader(innerHTML), content)
	if err != nil {
		return fmt.Errorf("parse label fragment: %w", err)
	}
	for _, c := range children {
		content.AppendChild(c)
	}
	cell := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "role", Val: "gridcell"}},
	}
	cell.AppendChild(content)

	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	if last := r.node.LastChild; last != nil {
		r.node.InsertBefore(cell, last)
	} else {
		r.node.AppendChild(cell)
	}
	return nil
}

// =============================================================================
// TREE HELPERS
// =============================================================================

// walk visits every element below n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}

// find returns the first element below n matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if m := find(c, pred); m != nil {
			return m
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// setStyle sets one inline declaration, keeping the others in place. An empty
// value leaves the element untouched, as assigning an invalid value through
// the CSSOM does.
func setStyle(n *html.Node, prop, value string) {
	if value == "" {
		return
	}
	decls := strings.Split(attr(n, "style"), ";")
	out := make([]string, 0, len(decls)+1)
	replaced := false
	for _, decl := range decls {
		name, _, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			if !replaced {
				out = append(out, prop+": "+value)
				replaced = true
			}
			continue
		}
		out = append(out, strings.TrimSpace(decl))
	}
	if !replaced {
		out = append(out, prop+": "+value)
	}
	setAttr(n, "style", strings.Join(out, "; ")+";")
}

// innerText approximates the rendered text of n: text nodes joined with
// whitespace runs collapsed.
func innerText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
				sb.WriteByte(' ')
			case html.ElementNode:
				if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
					continue
				}
				collect(c)
			}
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Style returns the inline style declaration for prop on the first element
// matching the given data-key, for tests and diagnostics.
func (d *Document) Style(taskKey, prop string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	bar := find(d.root, func(n *html.Node) bool { return attr(n, dom.TaskBarKeyAttr) == taskKey })
	if bar == nil {
		return ""
	}
	return styleValue(bar, prop)
}

// ProgressStyle is Style for the task bar's progress strip.
func (d *Document) ProgressStyle(taskKey, prop string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	bar := find(d.root, func(n *html.Node) bool { return attr(n, dom.TaskBarKeyAttr) == taskKey })
	if bar == nil {
		return ""
	}
	progress := find(bar, func(n *html.Node) bool { return hasClass(n, dom.ProgressClass) })
	if progress == nil {
		return ""
	}
	return styleValue(progress, prop)
}

func styleValue(n *html.Node, prop string) string {
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		name, val, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), prop) {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// MarkerCells counts elements carrying class below the element with the
// given id.
func (d *Document) MarkerCells(rowID, class string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	scope := d.root
	if rowID != "" {
		scope = find(d.root, func(n *html.Node) bool { return attr(n, "id") == rowID })
		if scope == nil {
			return 0
		}
	}
	count := 0
	walk(scope, func(n *html.Node) {
		if hasClass(n, class) {
			count++
		}
	})
	return count
}
