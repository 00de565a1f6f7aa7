package imagery_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"panelcast/internal/collab/imagery"
	"panelcast/internal/manifest"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestCropClipsToPage(t *testing.T) {
	page := solidPNG(t, 100, 80, color.White)
	out, err := imagery.Crop(page, manifest.BBox{X: 60, Y: 40, W: 100, H: 100})
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	w, h, err := imagery.Size(out)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if w != 40 || h != 40 {
		t.Fatalf("expected clipped 40x40 crop, got %dx%d", w, h)
	}
}

func TestCropOutsidePageFails(t *testing.T) {
	page := solidPNG(t, 10, 10, color.White)
	if _, err := imagery.Crop(page, manifest.BBox{X: 50, Y: 50, W: 5, H: 5}); err == nil {
		t.Fatal("expected error for box outside the page")
	}
}

func TestLetterboxProducesTargetFrame(t *testing.T) {
	tall := solidPNG(t, 50, 200, color.White)
	out, err := imagery.Letterbox(tall, 160, 90)
	if err != nil {
		t.Fatalf("Letterbox: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 90 {
		t.Fatalf("expected 160x90 frame, got %v", b)
	}
	r, g, bl, _ := img.At(0, 45).RGBA()
	if r != 0 || g != 0 || bl != 0 {
		t.Fatalf("expected black bar at the left edge, got %d,%d,%d", r, g, bl)
	}
	r, g, bl, _ = img.At(80, 45).RGBA()
	if r == 0 && g == 0 && bl == 0 {
		t.Fatal("expected panel content in the centre")
	}
}

func TestLetterboxUpscalesSmallPanels(t *testing.T) {
	small := solidPNG(t, 16, 9, color.White)
	out, err := imagery.Letterbox(small, 160, 90)
	if err != nil {
		t.Fatalf("Letterbox: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, _, _, _ := img.At(2, 2).RGBA()
	if r == 0 {
		t.Fatal("expected same-aspect panel to fill the frame")
	}
}

func TestLetterboxRejectsBadTarget(t *testing.T) {
	if _, err := imagery.Letterbox(solidPNG(t, 4, 4, color.White), 0, 10); err == nil {
		t.Fatal("expected error for zero width")
	}
}
