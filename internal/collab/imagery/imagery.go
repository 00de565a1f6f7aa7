// Package imagery crops panels out of rendered pages and letterboxes them to
// a fixed playback resolution.
package imagery

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"panelcast/internal/manifest"
	"panelcast/internal/services"
)

// FillModelLetterbox is recorded on panels normalized with black bars.
const FillModelLetterbox = "letterbox"

// Size returns the pixel dimensions of an encoded image.
func Size(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: decode image header: %w", services.ErrStageFailure, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Crop cuts box out of the encoded page and returns it as PNG. The box is
// clipped to the page; a box entirely outside the page is an error.
func Crop(page []byte, box manifest.BBox) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: decode page: %w", services.ErrStageFailure, err)
	}
	rect := image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H).Intersect(src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: panel box %+v outside page %v", services.ErrStageFailure, box, src.Bounds())
	}
	return encodePNG(imaging.Crop(src, rect))
}

// Letterbox scales the image to fit width x height without distortion and
// centres it on a black canvas of exactly that size.
func Letterbox(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: letterbox target %dx%d", services.ErrConfiguration, width, height)
	}
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode panel: %w", services.ErrStageFailure, err)
	}
	fitted := imaging.Fit(src, width, height, imaging.Lanczos)
	b := fitted.Bounds()
	if b.Dx() < width && b.Dy() < height {
		// Fit never upscales; grow small panels until one side touches the frame.
		fitted = imaging.Resize(src, width, 0, imaging.Lanczos)
		if fitted.Bounds().Dy() > height {
			fitted = imaging.Resize(src, 0, height, imaging.Lanczos)
		}
	}
	canvas := imaging.New(width, height, color.Black)
	return encodePNG(imaging.PasteCenter(canvas, fitted))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
