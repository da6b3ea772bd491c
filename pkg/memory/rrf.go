package memory

import "sort"

// rrfK is the standard Reciprocal Rank Fusion constant used throughout the
// pack (grounded on the teacher's pkg/databases/qdrant.go, which also
// hard-codes 60).
const rrfK = 60

// Ranked is a minimal candidate shape for fusion: an identifier and
// whatever payload the caller wants carried through. Keeping this
// independent of pkg/store's SearchResult type lets RRF be fused and
// tested without depending on a document-store driver.
type Ranked[T any] struct {
	ID      string
	Payload T
}

// fuseScore holds a candidate's payload, its accumulated RRF score, and
// the index at which it was first seen across both lists, which breaks
// score ties.
type fuseScore[T any] struct {
	payload  T
	score    float64
	order    int // first-seen index, for stable tie-breaking
}

// Fuse combines two ranked lists (e.g. a vector-similarity ranking and a
// lexical-relevance ranking) by Reciprocal Rank Fusion:
//
//	score(doc) = sum over lists where doc appears of 1/(k + rank)
//
// with k=60 and rank 1-based. The result is sorted by descending score and
// truncated to limit. Ties are broken by the order each document was first
// encountered — vector list first, then lexical — so Fuse is a
// deterministic, stable function of its inputs per spec.md §8 invariant 6.
//
// If one list is empty (e.g. because the corresponding index is not
// configured), Fuse degrades to ranking by the other list alone — it never
// errors.
func Fuse[T any](vector, lexical []Ranked[T], limit int) []Ranked[T] {
	scores := make(map[string]*fuseScore[T])
	order := 0

	addList := func(list []Ranked[T]) {
		for i, r := range list {
			s, ok := scores[r.ID]
			if !ok {
				s = &fuseScore[T]{payload: r.Payload, order: order}
				scores[r.ID] = s
				order++
			}
			rank := i + 1
			s.score += 1.0 / float64(rrfK+rank)
		}
	}

	addList(vector)
	addList(lexical)

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si.score != sj.score {
			return si.score > sj.score
		}
		return si.order < sj.order
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]Ranked[T], len(ids))
	for i, id := range ids {
		out[i] = Ranked[T]{ID: id, Payload: scores[id].payload}
	}
	return out
}
