package imageprocessor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// gradientImage returns a smooth horizontal-vertical luminance ramp.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*255/w + y*255/h) / 2)
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// blocksImage returns a coarse 4x4 block pattern, visually unlike the gradient.
func blocksImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x*4/w+y*4/h)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeDownscales(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape over bound", 800, 600, 400, 300},
		{"portrait over bound", 600, 800, 300, 400},
		{"within bound untouched", 320, 200, 320, 200},
		{"exactly at bound", 400, 400, 400, 400},
		{"extreme aspect ratio", 4000, 2, 400, 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			data := encodePNG(t, gradientImage(tc.w, tc.h))
			norm, err := Normalize(data)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if norm.Width != tc.w || norm.Height != tc.h {
				t.Errorf("original dimensions = %dx%d, want %dx%d", norm.Width, norm.Height, tc.w, tc.h)
			}
			b := norm.Raster.Bounds()
			if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
				t.Errorf("raster = %dx%d, want %dx%d", b.Dx(), b.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	t.Parallel()

	data := encodeJPEG(t, gradientImage(640, 480), 90)
	first, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(first.Raster.Pix, second.Raster.Pix) {
		t.Error("same bytes produced different rasters")
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{nil, []byte("not an image"), {0xff, 0xd8, 0x00}} {
		_, err := Normalize(data)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Normalize(%q) error = %v, want ErrDecode", data, err)
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	img := gradientImage(400, 300)
	first, err := ComputeFingerprint(img)
	if err != nil {
		t.Fatalf("ComputeFingerprint: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := ComputeFingerprint(img)
		if err != nil {
			t.Fatalf("ComputeFingerprint: %v", err)
		}
		if again != first {
			t.Fatalf("fingerprint changed between calls: %v vs %v", first, again)
		}
	}
}

func TestFingerprintEditResistance(t *testing.T) {
	t.Parallel()

	base := gradientImage(640, 480)
	baseFP, err := ComputeFingerprint(base)
	if err != nil {
		t.Fatalf("ComputeFingerprint: %v", err)
	}

	// Re-encode as lossy JPEG and decode again: the fingerprint must move
	// only a few bits.
	reencoded, err := Normalize(encodeJPEG(t, base, 70))
	if err != nil {
		t.Fatalf("Normalize re-encoded: %v", err)
	}
	jpegFP, err := ComputeFingerprint(reencoded.Raster)
	if err != nil {
		t.Fatalf("ComputeFingerprint re-encoded: %v", err)
	}
	if d := baseFP.Distance(jpegFP); d > 10 {
		t.Errorf("JPEG re-encode moved fingerprint %d bits, want <= 10", d)
	}

	// Minor resize likewise.
	resized, err := Normalize(encodePNG(t, gradientImage(600, 450)))
	if err != nil {
		t.Fatalf("Normalize resized: %v", err)
	}
	resizedFP, err := ComputeFingerprint(resized.Raster)
	if err != nil {
		t.Fatalf("ComputeFingerprint resized: %v", err)
	}
	if d := baseFP.Distance(resizedFP); d > 10 {
		t.Errorf("minor resize moved fingerprint %d bits, want <= 10", d)
	}
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	t.Parallel()

	a, err := ComputeFingerprint(gradientImage(400, 300))
	if err != nil {
		t.Fatalf("ComputeFingerprint: %v", err)
	}
	b, err := ComputeFingerprint(blocksImage(400, 300))
	if err != nil {
		t.Fatalf("ComputeFingerprint: %v", err)
	}
	if d := a.Distance(b); d <= 10 {
		t.Errorf("visually distinct images only %d bits apart", d)
	}
}

func TestFingerprintDegenerateRaster(t *testing.T) {
	t.Parallel()

	if _, err := ComputeFingerprint(nil); !errors.Is(err, ErrFingerprint) {
		t.Errorf("nil raster error = %v, want ErrFingerprint", err)
	}
	empty := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	if _, err := ComputeFingerprint(empty); !errors.Is(err, ErrFingerprint) {
		t.Errorf("zero-area raster error = %v, want ErrFingerprint", err)
	}
}

func TestThumbnailRoundTrip(t *testing.T) {
	t.Parallel()

	norm, err := Normalize(encodePNG(t, gradientImage(800, 600)))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	encoded, err := EncodeThumbnail(norm.Raster)
	if err != nil {
		t.Fatalf("EncodeThumbnail: %v", err)
	}
	decoded, err := DecodeThumbnail(encoded)
	if err != nil {
		t.Fatalf("DecodeThumbnail: %v", err)
	}

	if got, want := decoded.Bounds(), norm.Raster.Bounds(); got.Dx() != want.Dx() || got.Dy() != want.Dy() {
		t.Errorf("thumbnail dimensions %v, want %v", got, want)
	}

	// Re-fingerprinting the stored thumbnail must stay near the original.
	origFP, err := ComputeFingerprint(norm.Raster)
	if err != nil {
		t.Fatalf("ComputeFingerprint: %v", err)
	}
	thumbFP, err := ComputeFingerprint(decoded)
	if err != nil {
		t.Fatalf("ComputeFingerprint thumbnail: %v", err)
	}
	if d := origFP.Distance(thumbFP); d > 10 {
		t.Errorf("thumbnail re-fingerprint moved %d bits, want <= 10", d)
	}
}
