package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"plannercolors/internal/dom"
)

// PageSurface implements dom.Surface on a live page.
type PageSurface struct {
	page *rod.Page
}

var _ dom.Surface = (*PageSurface)(nil)

// NewPageSurface wraps page.
func NewPageSurface(page *rod.Page) *PageSurface {
	return &PageSurface{page: page}
}

// Page returns the wrapped page.
func (s *PageSurface) Page() *rod.Page { return s.page }

const paintJS = `(selector, keyAttr, key, progressClass, background, border, progress) => {
	const bar = Array.from(document.querySelectorAll(selector))
		.find((el) => el.getAttribute(keyAttr) === key);
	if (!bar) return false;
	bar.style.borderColor = border;
	bar.style.backgroundColor = background;
	const strip = bar.getElementsByClassName(progressClass)[0];
	if (strip) strip.style.backgroundColor = progress;
	return true;
}`

// PaintTaskBar implements dom.Surface.
func (s *PageSurface) PaintTaskBar(ctx context.Context, taskKey string, style dom.BarStyle) (bool, error) {
	res, err := s.page.Context(ctx).Eval(paintJS,
		dom.TaskBarSelector, dom.TaskBarKeyAttr, taskKey, dom.ProgressClass,
		style.Background, style.Border, style.Progress)
	if err != nil {
		return false, fmt.Errorf("paint task bar %s: %w", taskKey, err)
	}
	return res.Value.Bool(), nil
}

// Rows implements dom.Surface.
func (s *PageSurface) Rows(ctx context.Context) ([]dom.Row, error) {
	page := s.page.Context(ctx)
	found, grid, err := page.Has("." + dom.GridClass)
	if err != nil {
		return nil, fmt.Errorf("find schedule grid: %w", err)
	}
	if !found {
		return nil, dom.ErrGridNotFound
	}
	els, err := grid.Elements("." + dom.RowClass)
	if err != nil {
		return nil, fmt.Errorf("list grid rows: %w", err)
	}
	rows := make([]dom.Row, 0, len(els))
	for _, el := range els {
		rows = append(rows, &pageRow{el: el})
	}
	return rows, nil
}

type pageRow struct {
	el *rod.Element
}

func (r *pageRow) Annotated(ctx context.Context, markerClass string) (bool, error) {
	found, _, err := r.el.Context(ctx).Has("." + markerClass)
	return found, err
}

func (r *pageRow) Name(ctx context.Context) (string, bool, error) {
	found, cell, err := r.el.Context(ctx).Has(`[id$="` + dom.NameCellSuffix + `"]`)
	if err != nil || !found {
		return "", false, err
	}
	text, err := cell.Text()
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

const injectJS = `function (contentClass, innerHTML) {
	const cell = document.createElement("div");
	cell.setAttribute("role", "gridcell");
	const content = document.createElement("div");
	content.className = contentClass;
	content.innerHTML = innerHTML;
	cell.appendChild(content);
	if (this.lastChild) this.insertBefore(cell, this.lastChild);
	else this.appendChild(cell);
}`

func (r *pageRow) InjectCell(ctx context.Context, contentClass, innerHTML string) error {
	_, err := r.el.Context(ctx).Eval(injectJS, contentClass, innerHTML)
	return err
}
