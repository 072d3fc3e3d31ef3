// Package palette assigns colors to buckets and labels.
//
// Colors come first from the planner's curated 26-entry palette. When an
// index falls outside it, entries are taken in order from a 10-entry
// pastel/accent fallback pool shared by buckets and labels. Once the pool is
// exhausted no color is returned.
package palette

import (
	"fmt"
	"sync"

	"plannercolors/internal/logging"
)

const (
	// AccentOffset is subtracted from each curated channel for borders and
	// progress bars.
	AccentOffset = 20
	// TextOffset is subtracted from each curated channel for label text.
	TextOffset = 80
)

// RGB is one curated palette entry.
type RGB [3]int

// curated mirrors the preset colors offered by the planner, in index order.
var curated = []RGB{
	{255, 255, 255},
	{251, 221, 240},
	{233, 199, 205},
	{245, 237, 206},
	{219, 235, 199},
	{208, 231, 248},
	{216, 204, 231},
	{241, 217, 204},
	{229, 242, 211},
	{194, 231, 231},
	{229, 228, 227},
	{234, 238, 239},
	{226, 209, 203},
	{197, 15, 31},
	{255, 0, 0},
	{255, 140, 0},
	{234, 163, 0},
	{19, 161, 14},
	{11, 106, 11},
	{0, 183, 195},
	{52, 136, 200},
	{0, 57, 102},
	{113, 96, 235},
	{119, 0, 77},
	{122, 117, 116},
	{57, 65, 70},
}

var pastel = []string{
	"#FFB3BA", // soft pink
	"#FFDFBA", // peach
	"#FFFFBA", // light yellow
	"#BAFFC9", // mint green
	"#BAE1FF", // light blue
	"#D7BDE2", // lavender
	"#FAD2E1", // blush pink
	"#B5EAD7", // aqua green
	"#C7CEEA", // periwinkle
	"#FFD3B6", // warm apricot
}

// accent[i] pairs with pastel[i].
var accent = []string{
	"#D81B60",
	"#FF6700",
	"#CDA500",
	"#00875A",
	"#0056B3",
	"#6A0DAD",
	"#B22222",
	"#00796B",
	"#4B0082",
	"#A45A00",
}

// Color is a set of CSS color values. Text is only set for labels drawn
// from the curated palette.
type Color struct {
	Background string
	Accent     string
	Text       string
}

type bucketEntry struct {
	color Color
	ok    bool
}

// Allocator hands out colors for one page session.
type Allocator struct {
	mu      sync.Mutex
	next    int // fallback cursor
	buckets map[string]bucketEntry
}

// NewAllocator returns an allocator with an untouched fallback pool.
func NewAllocator() *Allocator {
	return &Allocator{buckets: make(map[string]bucketEntry)}
}

// ForBucket returns the color of a bucket. The first answer for a bucket id
// is kept for the rest of the session, whatever colorIndex later says.
// Callers pass -1 when the bucket itself is unknown.
func (a *Allocator) ForBucket(bucketID string, colorIndex int) (Color, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.buckets[bucketID]; ok {
		return e.color, e.ok
	}

	var e bucketEntry
	if rgb, ok := curatedAt(colorIndex); ok {
		e = bucketEntry{color: Color{Background: css(rgb, 0), Accent: css(rgb, AccentOffset)}, ok: true}
	} else {
		e.color, e.ok = a.fallbackLocked()
	}
	a.buckets[bucketID] = e
	logging.PaletteDebug("bucket %s (index %d) -> %+v ok=%v", bucketID, colorIndex, e.color, e.ok)
	return e.color, e.ok
}

// ForLabelIndex returns the color of a label from its color index. Results
// are not cached: an out-of-range index draws a new fallback entry on every
// call.
func (a *Allocator) ForLabelIndex(colorIndex int) (Color, bool) {
	if rgb, ok := curatedAt(colorIndex); ok {
		return Color{
			Background: css(rgb, 0),
			Accent:     css(rgb, AccentOffset),
			Text:       css(rgb, TextOffset),
		}, true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fallbackLocked()
}

// Remaining reports how many fallback entries are still unused.
func (a *Allocator) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(pastel) - a.next
}

func (a *Allocator) fallbackLocked() (Color, bool) {
	if a.next >= len(pastel) || a.next >= len(accent) {
		return Color{}, false
	}
	c := Color{Background: pastel[a.next], Accent: accent[a.next]}
	a.next++
	return c, true
}

func curatedAt(i int) (RGB, bool) {
	if i < 0 || i >= len(curated) {
		return RGB{}, false
	}
	return curated[i], true
}

func css(rgb RGB, offset int) string {
	return fmt.Sprintf("rgb(%d, %d, %d)",
		max(0, rgb[0]-offset), max(0, rgb[1]-offset), max(0, rgb[2]-offset))
}

// Curated returns a copy of the curated palette.
func Curated() []RGB {
	return append([]RGB(nil), curated...)
}

// Fallback returns the fallback pool as background/accent pairs.
func Fallback() []Color {
	out := make([]Color, len(pastel))
	for i := range pastel {
		out[i] = Color{Background: pastel[i], Accent: accent[i]}
	}
	return out
}

// Size is the number of curated entries.
func Size() int { return len(curated) }
