package types

import (
	"fmt"
	"math/bits"
	"strconv"
	"time"
)

// FingerprintBits is the fixed length of every fingerprint.
const FingerprintBits = 64

// Fingerprint is a 64-bit perceptual hash of a normalized image raster.
// Visually similar images share most bit positions; distinct images agree
// on roughly half of them.
type Fingerprint uint64

// Distance returns the Hamming distance between two fingerprints,
// in the range [0, FingerprintBits].
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(uint64(f ^ other))
}

// String renders the fingerprint as 16 hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ParseFingerprint parses the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %v", s, err)
	}
	return Fingerprint(v), nil
}

// AssetRecord holds one indexed image. The store assigns ID on insert and
// owns record identity; all other fields are produced by the pipeline.
type AssetRecord struct {
	ID          int64
	FileName    string
	FilePath    string // best-effort relative path, not unique
	FileSize    int64
	ModifiedAt  time.Time
	Width       int // original dimensions, pre-downscale
	Height      int
	Thumbnail   []byte       // encoded normalized raster
	Fingerprint *Fingerprint // nil when extraction failed
	Tags        []string     // lowercase, order-irrelevant
}

// HasTag reports whether the record carries the exact tag.
func (r *AssetRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SearchResult pairs an asset with a similarity score in [0,1].
// Result lists are ordered by descending score; ties keep the original
// collection order.
type SearchResult struct {
	Asset      *AssetRecord
	Similarity float64
}

// Cluster is a transient near-duplicate group of asset ids, recomputed per
// request by the similarity index and never persisted.
type Cluster struct {
	IDs []int64
}
