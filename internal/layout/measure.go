package layout

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FaceMeasurer measures label text with a font.Face.
type FaceMeasurer struct {
	face font.Face
}

// NewFaceMeasurer wraps face. A nil face uses the built-in 7x13 bitmap font.
func NewFaceMeasurer(face font.Face) *FaceMeasurer {
	if face == nil {
		face = basicfont.Face7x13
	}
	return &FaceMeasurer{face: face}
}

func (f *FaceMeasurer) TextWidth(text string) float64 {
	return float64(font.MeasureString(f.face, text).Ceil())
}

func (f *FaceMeasurer) LineHeight() float64 {
	return float64(f.face.Metrics().Height.Ceil())
}

// FixedMeasurer assumes every rune has the same width.
type FixedMeasurer struct {
	RuneWidth float64
	Height    float64
}

func (f FixedMeasurer) TextWidth(text string) float64 {
	return f.RuneWidth * float64(len([]rune(text)))
}

func (f FixedMeasurer) LineHeight() float64 { return f.Height }
