package certificate

import "math"

// Anchor is the pen origin on the text baseline, in image pixels.
type Anchor struct {
	X int
	Y int
}

// Place centres a text box of the given size on a width x height image and
// shifts it by the user offsets. Positive xOff moves right; positive yOff
// moves up. The result is not clamped to the image, so text may land
// partially or fully off-canvas.
func Place(width, height int, size TextSize, xOff, yOff float64) Anchor {
	x := float64(width-size.Width)/2 + xOff
	y := float64(height+size.Height)/2 - yOff
	return Anchor{X: int(math.Round(x)), Y: int(math.Round(y))}
}
