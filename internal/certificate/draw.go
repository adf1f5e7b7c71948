package certificate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// TextColor is the fill used for every rendered name.
var TextColor = color.Black

// Draw renders text onto a copy of src with its pen origin at at. src is
// never written to. Stroke weight is emulated by stamping the glyph run over
// a weight x weight pixel brush extending right and up from the anchor, the
// same growth Measure reports.
//
// Glyph coverage is rasterized into a separate mask and composited onto an
// NRGBA copy, so pixels the text does not touch keep their exact values.
func (f *Fonts) Draw(src image.Image, text string, at Anchor, kind FontKind, scale float64, weight int) (out *image.NRGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = newError(RenderFailure, "draw text", fmt.Errorf("panic: %v", r))
		}
	}()

	if src == nil {
		return nil, newError(RenderFailure, "no template to draw on", nil)
	}
	if weight < MinWeight {
		weight = MinWeight
	}

	face, err := f.Face(kind, scale)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	dst := imaging.Clone(src)
	b := dst.Bounds()

	mask := gg.NewContext(b.Dx(), b.Dy())
	mask.SetFontFace(face)
	mask.SetColor(color.Black)
	for dy := 0; dy < weight; dy++ {
		for dx := 0; dx < weight; dx++ {
			mask.DrawString(text, float64(at.X+dx), float64(at.Y-dy))
		}
	}

	draw.DrawMask(dst, b, image.NewUniform(TextColor), image.Point{}, mask.Image(), image.Point{}, draw.Over)
	return dst, nil
}
