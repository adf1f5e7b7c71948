package certificate

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Decode turns template bytes into a raster. Only PNG and JPEG are accepted,
// and the header is checked against lim before any pixels are allocated.
// Pixels are kept in stored order: EXIF orientation is ignored so the
// output has the template's stored dimensions.
func Decode(data []byte, lim Limits) (image.Image, error) {
	lim = lim.withDefaults()
	if len(data) == 0 {
		return nil, newError(DecodeFailure, "template is empty", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError(DecodeFailure, "template is not a valid image", err)
	}
	if format != "png" && format != "jpeg" {
		return nil, newError(DecodeFailure, fmt.Sprintf("unsupported image format %q, expected png or jpeg", format), nil)
	}
	if err := checkBounds(cfg.Width, cfg.Height, lim); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(DecodeFailure, "template is not a valid image", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, newError(DecodeFailure, "template has zero dimensions", nil)
	}
	return img, nil
}

func checkBounds(width, height int, lim Limits) error {
	if width <= 0 || height <= 0 {
		return newError(DecodeFailure, fmt.Sprintf("template has invalid dimensions %dx%d", width, height), nil)
	}
	if width > lim.MaxDimension || height > lim.MaxDimension {
		return newError(DecodeFailure, fmt.Sprintf("template dimensions %dx%d exceed %d", width, height, lim.MaxDimension), nil)
	}
	if px := int64(width) * int64(height); px > lim.MaxPixels {
		return newError(DecodeFailure, fmt.Sprintf("template has %d pixels, at most %d allowed", px, lim.MaxPixels), nil)
	}
	return nil
}
