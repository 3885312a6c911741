package imageprocessor

import (
	"errors"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"

	"imagedex/types"
)

// ErrFingerprint marks a raster that cannot be fingerprinted (degenerate
// dimensions). The pipeline skips such items.
var ErrFingerprint = errors.New("cannot fingerprint image")

// ComputeFingerprint derives the 64-bit perceptual hash of a normalized
// raster: the image is reduced to a small luminance grid, a low-frequency
// DCT is taken over it, and each of the 64 cells contributes one bit by
// comparing against the grid median. Deterministic for identical rasters;
// minor re-encoding or resizing flips only a few bits.
func ComputeFingerprint(raster image.Image) (types.Fingerprint, error) {
	if raster == nil {
		return 0, fmt.Errorf("%w: nil raster", ErrFingerprint)
	}
	bounds := raster.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return 0, fmt.Errorf("%w: zero-area raster", ErrFingerprint)
	}

	hash, err := goimagehash.PerceptionHash(raster)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFingerprint, err)
	}
	return types.Fingerprint(hash.GetHash()), nil
}
