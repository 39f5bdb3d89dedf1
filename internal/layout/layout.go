// Package layout places spot labels along a frequency axis in horizontal
// lanes so that no two labels in the same lane overlap.
//
// Placement is greedy first-fit in frequency order: each label goes into the
// topmost lane whose right edge is clear of it, a new lane is opened when
// none fits, and the label is omitted once the lane limit is reached. The
// result is deterministic and stable under small window changes but not a
// minimum lane coloring.
package layout

import (
	"math"

	"github.com/couchcryptid/spotlane/internal/domain"
)

const (
	// DefaultMaxLanes is the lane limit used when Options.MaxLanes is zero.
	DefaultMaxLanes = 8
	// LabelPadding is the horizontal padding on each side of the label text.
	LabelPadding = 5.0
	// LaneGap is the minimum horizontal clearance between labels in one lane.
	LaneGap = 2.0
	// LaneSpacing is the vertical space between consecutive lanes.
	LaneSpacing = 2.0
)

// Point is a pixel coordinate.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	Min, Max Point
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Window is the visible part of the frequency axis as supplied by the host
// on each redraw.
type Window struct {
	LowFreq  float64 `json:"low_freq"`
	HighFreq float64 `json:"high_freq"`
	Min      Point   `json:"min"`
	Max      Point   `json:"max"`
	// FreqToPixelRatio is pixels per Hz.
	FreqToPixelRatio float64 `json:"freq_to_pixel_ratio"`
}

// NewWindow builds a Window that maps [low, high] onto the pixel span of the
// given rectangle.
func NewWindow(low, high float64, min, max Point) Window {
	w := Window{LowFreq: low, HighFreq: high, Min: min, Max: max}
	if high > low {
		w.FreqToPixelRatio = (max.X - min.X) / (high - low)
	}
	return w
}

// X maps a frequency to its x pixel, rounded to a whole pixel.
func (w Window) X(freq float64) float64 {
	return w.Min.X + math.Round((freq-w.LowFreq)*w.FreqToPixelRatio)
}

// InRange reports whether freq lies within the visible window, bounds included.
func (w Window) InRange(freq float64) bool {
	return freq >= w.LowFreq && freq <= w.HighFreq
}

func (w Window) clampX(x float64) float64 {
	return math.Min(math.Max(x, w.Min.X), w.Max.X)
}

// Measurer estimates the pixel size of label text.
type Measurer interface {
	// TextWidth returns the rendered width of text in pixels.
	TextWidth(text string) float64
	// LineHeight returns the height of one line of text in pixels.
	LineHeight() float64
}

// Options tunes a layout pass.
type Options struct {
	MaxLanes int
}

// Placement is one label that fit into a lane.
type Placement struct {
	Spot domain.Spot `json:"spot"`
	Lane int         `json:"lane"`
	// Rect is the full label rectangle, usable for hit-testing until the next pass.
	Rect Rect `json:"rect"`
	// Clamped is Rect clipped horizontally to the window; this is what gets drawn.
	Clamped Rect `json:"clamped"`
	// TextOrigin is the top-left corner of the label text.
	TextOrigin Point `json:"text_origin"`
}

// Tick is the vertical marker drawn at a spot's frequency.
type Tick struct {
	Spot   domain.Spot `json:"spot"`
	X      float64     `json:"x"`
	Top    float64     `json:"top"`
	Bottom float64     `json:"bottom"`
	Placed bool        `json:"placed"`
}

// Layout is the output of one pass.
type Layout struct {
	Placements []Placement `json:"placements"`
	Ticks      []Tick      `json:"ticks"`
	Lanes      int         `json:"lanes"`
	Omitted    int         `json:"omitted"`
}

// Compute lays out spots, which must be in ascending frequency order, within
// the window. Spots outside the window are skipped; spots that do not fit
// into any of the allowed lanes get a tick but no label.
func Compute(spots []domain.Spot, w Window, m Measurer, opts Options) Layout {
	maxLanes := opts.MaxLanes
	if maxLanes <= 0 {
		maxLanes = DefaultMaxLanes
	}
	labelHeight := m.LineHeight()
	laneHeight := labelHeight + LaneSpacing

	var (
		out        Layout
		laneRights []float64 // rightmost occupied x per lane
	)

	for _, sp := range spots {
		if !w.InRange(sp.Frequency) {
			continue
		}

		centerX := w.X(sp.Frequency)
		textWidth := m.TextWidth(sp.Label)
		left := centerX - textWidth/2 - LabelPadding
		right := centerX + textWidth/2 + LabelPadding

		lane := -1
		for i, laneRight := range laneRights {
			if left-LaneGap >= laneRight {
				lane = i
				laneRights[i] = right
				break
			}
		}
		if lane < 0 && len(laneRights) < maxLanes {
			lane = len(laneRights)
			laneRights = append(laneRights, right)
		}

		tick := Tick{Spot: sp, X: centerX, Bottom: w.Max.Y}
		if lane < 0 {
			out.Omitted++
			out.Ticks = append(out.Ticks, tick)
			continue
		}

		top := w.Min.Y + float64(lane)*laneHeight
		rect := Rect{
			Min: Point{X: left, Y: top},
			Max: Point{X: right, Y: top + labelHeight},
		}
		clamped := Rect{
			Min: Point{X: w.clampX(rect.Min.X), Y: rect.Min.Y},
			Max: Point{X: w.clampX(rect.Max.X), Y: rect.Max.Y},
		}
		tick.Top = top
		tick.Placed = true
		out.Ticks = append(out.Ticks, tick)

		if clamped.Width() <= 0 {
			continue
		}
		out.Placements = append(out.Placements, Placement{
			Spot:       sp,
			Lane:       lane,
			Rect:       rect,
			Clamped:    clamped,
			TextOrigin: Point{X: centerX - textWidth/2, Y: top},
		})
	}

	out.Lanes = len(laneRights)
	// Unplaced ticks start below the lowest lane in use.
	for i := range out.Ticks {
		if !out.Ticks[i].Placed {
			out.Ticks[i].Top = w.Min.Y + float64(out.Lanes)*laneHeight
		}
	}
	return out
}

// HitTest returns the placement whose drawn rectangle contains p.
func (l Layout) HitTest(p Point) (Placement, bool) {
	for _, pl := range l.Placements {
		if pl.Clamped.Contains(p) {
			return pl, true
		}
	}
	return Placement{}, false
}
