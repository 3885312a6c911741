// Package search ranks assets against a free-text query by fusing lexical
// filename/tag matches with service-assisted semantic tag expansion.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"imagedex/logging"
	"imagedex/types"
)

// Score weights for the lexical pass. A tag match outranks a filename
// match so curated semantics beat incidental naming.
const (
	filenameMatchScore = 0.8
	tagMatchScore      = 1.0
)

// DefaultExpandTimeout bounds the semantic expansion round-trip.
const DefaultExpandTimeout = 15 * time.Second

// Expander maps free-text query intent to the subset of known tags judged
// relevant. Implementations must fail soft: on timeout or service error the
// returned subset is empty and the error is informational only.
type Expander interface {
	Expand(ctx context.Context, query string, candidates []string) ([]string, error)
}

// Ranker produces descending-similarity result lists for text queries.
type Ranker struct {
	Expander      Expander      // nil disables the semantic fallback
	ExpandTimeout time.Duration // zero means DefaultExpandTimeout
}

// Search runs the two-stage ranking over the collection. The lexical pass
// is free and deterministic and short-circuits the semantic fallback
// whenever it yields any result. Ties keep collection order.
func (r *Ranker) Search(ctx context.Context, query string, assets []*types.AssetRecord) []types.SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	if results := lexicalPass(query, assets); len(results) > 0 {
		sortByScore(results)
		return results
	}
	results := r.semanticPass(ctx, query, assets)
	sortByScore(results)
	return results
}

// lexicalPass scores case-insensitive substring matches on filename and
// tags. Assets with zero score are excluded.
func lexicalPass(query string, assets []*types.AssetRecord) []types.SearchResult {
	var results []types.SearchResult
	for _, asset := range assets {
		score := 0.0
		if strings.Contains(strings.ToLower(asset.FileName), query) {
			score += filenameMatchScore
		}
		for _, tag := range asset.Tags {
			if strings.Contains(strings.ToLower(tag), query) {
				score += tagMatchScore
				break
			}
		}
		if score > 0 {
			results = append(results, types.SearchResult{Asset: asset, Similarity: score})
		}
	}
	return results
}

// semanticPass asks the expander which known tags match the query intent
// and scores each asset by its overlap with that subset.
func (r *Ranker) semanticPass(ctx context.Context, query string, assets []*types.AssetRecord) []types.SearchResult {
	if r.Expander == nil {
		return nil
	}

	vocab := tagVocabulary(assets)
	if len(vocab) == 0 {
		return nil
	}

	timeout := r.ExpandTimeout
	if timeout <= 0 {
		timeout = DefaultExpandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	relevant, err := r.Expander.Expand(ctx, query, vocab)
	if err != nil {
		// Degrade to an empty result rather than failing the search.
		logging.LogWarning("semantic expansion failed for %q: %v", query, err)
		return nil
	}
	if len(relevant) == 0 {
		return nil
	}

	relevantSet := make(map[string]struct{}, len(relevant))
	for _, tag := range relevant {
		relevantSet[strings.ToLower(tag)] = struct{}{}
	}

	var results []types.SearchResult
	for _, asset := range assets {
		overlap := 0
		for _, tag := range asset.Tags {
			if _, ok := relevantSet[strings.ToLower(tag)]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			score := float64(overlap) / float64(len(relevantSet))
			results = append(results, types.SearchResult{Asset: asset, Similarity: score})
		}
	}
	return results
}

// tagVocabulary collects the distinct tags across the collection in
// first-seen order, so repeated queries send an identical candidate list.
func tagVocabulary(assets []*types.AssetRecord) []string {
	seen := make(map[string]struct{})
	var vocab []string
	for _, asset := range assets {
		for _, tag := range asset.Tags {
			tag = strings.ToLower(tag)
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			vocab = append(vocab, tag)
		}
	}
	return vocab
}

// sortByScore orders results by descending similarity, keeping collection
// order on ties.
func sortByScore(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
}
