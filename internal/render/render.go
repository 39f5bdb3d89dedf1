// Package render turns a lane layout into host-agnostic draw commands.
// The host owns the drawing surface; this package only emits geometry,
// colors and text.
package render

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/couchcryptid/spotlane/internal/layout"
)

// Kind identifies a drawing primitive.
type Kind string

const (
	Line       Kind = "line"
	RectFilled Kind = "rect_filled"
	Text       Kind = "text"
)

// Command is one drawing primitive. Line uses From/To, RectFilled uses
// From/To as min/max corners, Text draws Label at From.
type Command struct {
	Kind  Kind         `json:"kind"`
	From  layout.Point `json:"from"`
	To    layout.Point `json:"to,omitempty"`
	Color Color        `json:"color"`
	Label string       `json:"label,omitempty"`
}

// Frame is everything the host needs for one redraw.
type Frame struct {
	Layout   layout.Layout `json:"layout"`
	Commands []Command     `json:"commands"`
}

// Palette resolves the color used for a source's spots.
type Palette func(sourceID string) Color

var (
	// DefaultSpotColor is used for sources without a configured color.
	DefaultSpotColor = Color{R: 0xCF, G: 0xFD, B: 0xBC, A: 0xFF}
	// TextColor is the label foreground.
	TextColor = Color{A: 0xFF}
)

// Commands emits, in order, every tick line followed by a filled rectangle
// and text for each placed label.
func Commands(l layout.Layout, palette Palette) []Command {
	if palette == nil {
		palette = func(string) Color { return DefaultSpotColor }
	}

	cmds := make([]Command, 0, len(l.Ticks)+2*len(l.Placements))
	for _, tick := range l.Ticks {
		cmds = append(cmds, Command{
			Kind:  Line,
			From:  layout.Point{X: tick.X, Y: tick.Top},
			To:    layout.Point{X: tick.X, Y: tick.Bottom},
			Color: palette(tick.Spot.SourceID),
		})
	}
	for _, p := range l.Placements {
		cmds = append(cmds,
			Command{
				Kind:  RectFilled,
				From:  p.Clamped.Min,
				To:    p.Clamped.Max,
				Color: palette(p.Spot.SourceID),
			},
			Command{
				Kind:  Text,
				From:  p.TextOrigin,
				Color: TextColor,
				Label: p.Spot.Label,
			},
		)
	}
	return cmds
}

// Color is an 8-bit RGBA color that serializes as "#RRGGBBAA".
type Color color.RGBA

// ParseColor parses "#RRGGBB" or "#RRGGBBAA" (the leading '#' is optional).
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, fmt.Errorf("parse color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xFF
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MustParseColor is ParseColor for compile-time constants.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalText lets colors be decoded from YAML and env strings.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
