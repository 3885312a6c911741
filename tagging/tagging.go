// Package tagging talks to the external semantic services: image tagging
// and query expansion. Both calls are treated as black boxes that may time
// out or fail; consumers degrade to empty results and keep going.
package tagging

import "context"

// MaxTagsPerImage caps how many keywords the tagging service may attach to
// one asset.
const MaxTagsPerImage = 5

// Tagger generates up to MaxTagsPerImage lowercase keyword strings for an
// encoded normalized raster.
type Tagger interface {
	TagImage(ctx context.Context, thumbnail []byte) ([]string, error)
}

// Expander selects the subset of candidate tags relevant to a free-text
// query's intent.
type Expander interface {
	Expand(ctx context.Context, query string, candidates []string) ([]string, error)
}
