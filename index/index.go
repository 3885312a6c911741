// Package index maintains an incremental similarity index over asset
// fingerprints. It answers Hamming-ball queries ("every id within distance
// k") and partitions the collection into near-duplicate groups without
// comparing all pairs.
//
// Internally the 64-bit fingerprint is split into numBlocks consecutive
// 8-bit blocks, each hashed into its own bucket table. By pigeonhole, two
// fingerprints within Hamming distance k < numBlocks must agree exactly on
// at least one block, so a query probes one bucket per table and verifies
// the candidates. Thresholds of numBlocks bits or more fall back to a
// linear scan.
package index

import (
	"sort"
	"sync"

	"imagedex/types"
)

// DefaultDuplicateThreshold is the Hamming distance at or below which two
// fingerprints count as near-duplicates (5 of 64 bits, ~92% agreement).
const DefaultDuplicateThreshold = 5

const (
	numBlocks = 8
	blockBits = 8
)

type entry struct {
	id int64
	fp types.Fingerprint
}

// Index is safe for one writer and many concurrent readers. Inserts are
// atomic with respect to queries: a reader never observes a fingerprint
// in some bucket tables but not others.
type Index struct {
	mu      sync.RWMutex
	entries []entry       // insertion order
	byID    map[int64]int // id -> position in entries
	// buckets[b] maps the b-th 8-bit block value to entry positions.
	buckets [numBlocks]map[uint8][]int
}

// New returns an empty index.
func New() *Index {
	idx := &Index{byID: make(map[int64]int)}
	for b := 0; b < numBlocks; b++ {
		idx.buckets[b] = make(map[uint8][]int)
	}
	return idx
}

// block extracts the b-th 8-bit block of a fingerprint.
func block(fp types.Fingerprint, b int) uint8 {
	return uint8(uint64(fp) >> (uint(b) * blockBits))
}

// Insert adds a fingerprint incrementally; no rebuild is required.
// Re-inserting an existing id replaces its fingerprint.
func (idx *Index) Insert(id int64, fp types.Fingerprint) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if pos, ok := idx.byID[id]; ok {
		idx.removeLocked(pos)
	}

	pos := len(idx.entries)
	idx.entries = append(idx.entries, entry{id: id, fp: fp})
	idx.byID[id] = pos
	for b := 0; b < numBlocks; b++ {
		key := block(fp, b)
		idx.buckets[b][key] = append(idx.buckets[b][key], pos)
	}
}

// Remove drops an id from the index. Unknown ids are ignored.
func (idx *Index) Remove(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if pos, ok := idx.byID[id]; ok {
		idx.removeLocked(pos)
	}
}

// removeLocked tombstones the entry at pos; bucket slots keep the position
// but lookups against a negative id never match.
func (idx *Index) removeLocked(pos int) {
	delete(idx.byID, idx.entries[pos].id)
	idx.entries[pos].id = -1
}

// Len returns the number of live fingerprints.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// QueryWithin returns every indexed id whose fingerprint is within Hamming
// distance k of fp, in insertion order. The result includes exact matches
// (distance 0).
func (idx *Index) QueryWithin(fp types.Fingerprint, k int) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.queryLocked(fp, k)
}

// QueryByID looks up the fingerprint stored for id and returns its
// neighbors within distance k, excluding id itself. An id with no stored
// fingerprint yields an empty result, never an error.
func (idx *Index) QueryByID(id int64, k int) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pos, ok := idx.byID[id]
	if !ok {
		return nil
	}
	matches := idx.queryLocked(idx.entries[pos].fp, k)
	out := matches[:0]
	for _, m := range matches {
		if m != id {
			out = append(out, m)
		}
	}
	return out
}

func (idx *Index) queryLocked(fp types.Fingerprint, k int) []int64 {
	if k >= numBlocks {
		// Candidate pruning no longer sound; scan everything.
		var out []int64
		for _, e := range idx.entries {
			if e.id >= 0 && fp.Distance(e.fp) <= k {
				out = append(out, e.id)
			}
		}
		return out
	}

	seen := make(map[int]struct{})
	var positions []int
	for b := 0; b < numBlocks; b++ {
		for _, pos := range idx.buckets[b][block(fp, b)] {
			if _, dup := seen[pos]; dup {
				continue
			}
			seen[pos] = struct{}{}
			e := idx.entries[pos]
			if e.id >= 0 && fp.Distance(e.fp) <= k {
				positions = append(positions, pos)
			}
		}
	}
	sort.Ints(positions)

	var out []int64
	for _, pos := range positions {
		out = append(out, idx.entries[pos].id)
	}
	return out
}

// ClusterAll partitions all indexed fingerprints into disjoint
// near-duplicate groups at threshold k. Assignment is greedy in insertion
// order: each item joins the earliest-created cluster whose representative
// (first member) is within k, otherwise it starts a new cluster. The
// grouping is deterministic for a given insertion sequence.
func (idx *Index) ClusterAll(k int) []types.Cluster {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var reps []types.Fingerprint
	var clusters []types.Cluster

	for _, e := range idx.entries {
		if e.id < 0 {
			continue
		}
		assigned := false
		for c, rep := range reps {
			if e.fp.Distance(rep) <= k {
				clusters[c].IDs = append(clusters[c].IDs, e.id)
				assigned = true
				break
			}
		}
		if !assigned {
			reps = append(reps, e.fp)
			clusters = append(clusters, types.Cluster{IDs: []int64{e.id}})
		}
	}
	return clusters
}

// DuplicateGroups returns only the clusters holding more than one asset,
// which is what a duplicate view renders.
func (idx *Index) DuplicateGroups(k int) []types.Cluster {
	all := idx.ClusterAll(k)
	out := all[:0]
	for _, c := range all {
		if len(c.IDs) > 1 {
			out = append(out, c)
		}
	}
	return out
}
