package search

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"imagedex/types"
)

// stubExpander returns a canned tag subset and records what it was asked.
type stubExpander struct {
	tags    []string
	err     error
	calls   int
	queries []string
}

func (s *stubExpander) Expand(_ context.Context, query string, _ []string) ([]string, error) {
	s.calls++
	s.queries = append(s.queries, query)
	return s.tags, s.err
}

func testAssets() []*types.AssetRecord {
	return []*types.AssetRecord{
		{ID: 1, FileName: "holiday.jpg", Tags: []string{"cat"}},
		{ID: 2, FileName: "cat_photo.jpg", Tags: []string{"tree"}},
		{ID: 3, FileName: "landscape.png", Tags: []string{"dog", "tree"}},
	}
}

func resultIDs(results []types.SearchResult) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Asset.ID)
	}
	return ids
}

func TestLexicalPassScoring(t *testing.T) {
	t.Parallel()

	// Asset 1 has tag "cat" (1.0), asset 2 has the substring in its
	// filename (0.8), asset 3 matches neither.
	ranker := &Ranker{}
	results := ranker.Search(context.Background(), "cat", testAssets())

	if !reflect.DeepEqual(resultIDs(results), []int64{1, 2}) {
		t.Fatalf("result ids = %v, want [1 2]", resultIDs(results))
	}
	if results[0].Similarity != 1.0 {
		t.Errorf("tag match score = %v, want 1.0", results[0].Similarity)
	}
	if results[1].Similarity != 0.8 {
		t.Errorf("filename match score = %v, want 0.8", results[1].Similarity)
	}
}

func TestLexicalPassCombinesScores(t *testing.T) {
	t.Parallel()

	assets := []*types.AssetRecord{
		{ID: 1, FileName: "cat.jpg", Tags: []string{"cat", "cathedral"}},
	}
	ranker := &Ranker{}
	results := ranker.Search(context.Background(), "cat", assets)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	// Filename (0.8) plus one tag hit (1.0); multiple matching tags count once.
	if results[0].Similarity != 1.8 {
		t.Errorf("combined score = %v, want 1.8", results[0].Similarity)
	}
}

func TestLexicalPassCaseInsensitive(t *testing.T) {
	t.Parallel()

	assets := []*types.AssetRecord{
		{ID: 1, FileName: "CAT_Photo.JPG"},
	}
	ranker := &Ranker{}
	if results := ranker.Search(context.Background(), "Cat", assets); len(results) != 1 {
		t.Errorf("case-insensitive match failed: %v", results)
	}
}

func TestLexicalShortCircuitsExpansion(t *testing.T) {
	t.Parallel()

	expander := &stubExpander{tags: []string{"tree"}}
	ranker := &Ranker{Expander: expander}

	ranker.Search(context.Background(), "cat", testAssets())
	if expander.calls != 0 {
		t.Errorf("expander called %d times despite lexical matches, want 0", expander.calls)
	}
}

func TestSemanticFallbackScoring(t *testing.T) {
	t.Parallel()

	// No lexical match for "puppy"; the expander judges {"dog"} relevant,
	// so only assets tagged "dog" appear with score 1/1.
	expander := &stubExpander{tags: []string{"dog"}}
	ranker := &Ranker{Expander: expander}

	results := ranker.Search(context.Background(), "puppy", testAssets())
	if expander.calls != 1 {
		t.Fatalf("expander calls = %d, want 1", expander.calls)
	}
	if !reflect.DeepEqual(resultIDs(results), []int64{3}) {
		t.Fatalf("result ids = %v, want [3]", resultIDs(results))
	}
	if results[0].Similarity != 1.0 {
		t.Errorf("score = %v, want 1.0", results[0].Similarity)
	}
}

func TestSemanticFallbackPartialOverlap(t *testing.T) {
	t.Parallel()

	// Expansion returns two tags; an asset holding one of them scores 1/2.
	expander := &stubExpander{tags: []string{"dog", "cat"}}
	ranker := &Ranker{Expander: expander}

	results := ranker.Search(context.Background(), "pets", testAssets())
	want := []int64{1, 3}
	if !reflect.DeepEqual(resultIDs(results), want) {
		t.Fatalf("result ids = %v, want %v", resultIDs(results), want)
	}
	for _, r := range results {
		if r.Similarity != 0.5 {
			t.Errorf("score for id %d = %v, want 0.5", r.Asset.ID, r.Similarity)
		}
	}
}

func TestSemanticFallbackEmptyExpansion(t *testing.T) {
	t.Parallel()

	expander := &stubExpander{tags: nil}
	ranker := &Ranker{Expander: expander}

	if results := ranker.Search(context.Background(), "puppy", testAssets()); len(results) != 0 {
		t.Errorf("empty expansion produced results: %v", results)
	}
}

func TestSemanticFallbackFailsSoft(t *testing.T) {
	t.Parallel()

	expander := &stubExpander{err: errors.New("service unavailable")}
	ranker := &Ranker{Expander: expander}

	if results := ranker.Search(context.Background(), "puppy", testAssets()); len(results) != 0 {
		t.Errorf("failed expansion produced results: %v", results)
	}
}

func TestSearchOrderingAndTieBreak(t *testing.T) {
	t.Parallel()

	// Scores: id 2 gets 1.0 (tag), ids 1 and 3 get 0.8 (filename), id 4
	// matches nothing.
	assets := []*types.AssetRecord{
		{ID: 1, FileName: "beach_cat.jpg"},
		{ID: 2, FileName: "x.jpg", Tags: []string{"cat"}},
		{ID: 3, FileName: "cat_two.jpg"},
		{ID: 4, FileName: "nothing.jpg"},
	}
	ranker := &Ranker{}
	results := ranker.Search(context.Background(), "cat", assets)

	// Descending score; equal scores keep collection order (1 before 3).
	if !reflect.DeepEqual(resultIDs(results), []int64{2, 1, 3}) {
		t.Errorf("result ids = %v, want [2 1 3]", resultIDs(results))
	}
}

func TestSearchIdempotent(t *testing.T) {
	t.Parallel()

	assets := testAssets()
	expander := &stubExpander{tags: []string{"dog", "tree"}}
	ranker := &Ranker{Expander: expander}

	first := ranker.Search(context.Background(), "forest animals", assets)
	second := ranker.Search(context.Background(), "forest animals", assets)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated query diverged: %v vs %v", first, second)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	ranker := &Ranker{}
	if results := ranker.Search(context.Background(), "  ", testAssets()); results != nil {
		t.Errorf("blank query returned %v, want nil", results)
	}
}

func TestSemanticFallbackNoTagsInCollection(t *testing.T) {
	t.Parallel()

	expander := &stubExpander{tags: []string{"dog"}}
	ranker := &Ranker{Expander: expander}
	assets := []*types.AssetRecord{{ID: 1, FileName: "a.jpg"}}

	if results := ranker.Search(context.Background(), "puppy", assets); len(results) != 0 {
		t.Errorf("tagless collection produced results: %v", results)
	}
	if expander.calls != 0 {
		t.Errorf("expander called with an empty vocabulary")
	}
}
