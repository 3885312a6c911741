package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxThumbnailDim bounds the larger dimension of a normalized raster.
const MaxThumbnailDim = 400

// thumbnailJPEGQuality is used when encoding a raster for storage.
const thumbnailJPEGQuality = 85

// ErrDecode marks image bytes that could not be decoded (corrupt or
// unsupported format). The pipeline skips such items.
var ErrDecode = errors.New("cannot decode image")

// Normalized is the output of the thumbnail normalizer: a downscaled raster
// plus the original pixel dimensions.
type Normalized struct {
	Raster *image.NRGBA
	Width  int // original width, pre-downscale
	Height int // original height, pre-downscale
}

// Normalize decodes raw image bytes and produces a deterministic raster
// whose larger dimension does not exceed MaxThumbnailDim, preserving
// aspect ratio. Same bytes always yield the same raster.
func Normalize(data []byte) (*Normalized, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %s image has zero area", ErrDecode, format)
	}

	tw, th := fitWithin(w, h, MaxThumbnailDim)
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	return &Normalized{Raster: dst, Width: w, Height: h}, nil
}

// fitWithin scales (w, h) uniformly so the larger dimension equals max,
// never upscaling and never returning a zero dimension.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		scaled := h * max / w
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled
	}
	scaled := w * max / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max
}

// EncodeThumbnail serializes a raster as JPEG for storage in an asset record.
func EncodeThumbnail(raster image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("cannot encode thumbnail: %v", err)
	}
	return buf.Bytes(), nil
}

// DecodeThumbnail restores a stored thumbnail for display or re-fingerprinting.
func DecodeThumbnail(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}
