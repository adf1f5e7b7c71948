package certificate

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func blankImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func pngTemplate(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, blankImage(w, h)))
	return buf.Bytes()
}

func jpegTemplate(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, blankImage(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// withEXIFOrientation inserts an APP1 Exif segment carrying the given
// orientation tag right after the JPEG SOI marker.
func withEXIFOrientation(jpg []byte, orientation byte) []byte {
	exif := []byte{
		'E', 'x', 'i', 'f', 0, 0,
		// big-endian TIFF header with IFD0 at offset 8
		'M', 'M', 0, 0x2a, 0, 0, 0, 8,
		// one entry: Orientation, SHORT, count 1
		0, 1,
		0x01, 0x12, 0, 3, 0, 0, 0, 1, 0, orientation, 0, 0,
		// no next IFD
		0, 0, 0, 0,
	}
	seg := []byte{0xff, 0xe1, byte((len(exif) + 2) >> 8), byte(len(exif) + 2)}
	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	out = append(out, exif...)
	return append(out, jpg[2:]...)
}

func testFonts(t *testing.T) *Fonts {
	t.Helper()
	f, err := NewFonts()
	require.NoError(t, err)
	return f
}

// darkPixels counts pixels whose luminance is clearly below white.
func darkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if (r+g+bl)/3 < 0x8000 {
				n++
			}
		}
	}
	return n
}

type fixedMeasurer struct{ size TextSize }

func (m fixedMeasurer) Measure(string, FontKind, float64, int) (TextSize, error) {
	return m.size, nil
}
