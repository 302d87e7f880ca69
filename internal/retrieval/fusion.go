package retrieval

import (
	"sort"

	"repopilot/internal/store"
)

// rrfConstant dampens the weight of lower ranks in reciprocal-rank fusion.
// 60 is the standard value from the original RRF paper.
const rrfConstant = 60

// fuse merges independently ranked candidate lists by reciprocal-rank
// fusion: fused score is the sum of 1/(rank+constant) over the lists a
// candidate appears in. Rank based, not score based, so dense distances and
// BM25 values never have to share a scale. Candidates present in only one
// list still qualify. At most limit results are returned.
func fuse(limit int, lists ...[]store.SearchResult) []store.SearchResult {
	type fusedEntry struct {
		result store.SearchResult
		score  float64
		seen   int // insertion order, for deterministic ties
	}

	byUID := make(map[string]*fusedEntry)
	var order []*fusedEntry

	for _, list := range lists {
		for rank, r := range list {
			e, ok := byUID[r.Chunk.UID]
			if !ok {
				e = &fusedEntry{result: r, seen: len(order)}
				byUID[r.Chunk.UID] = e
				order = append(order, e)
			}
			e.score += 1.0 / float64(rank+1+rrfConstant)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].seen < order[j].seen
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	results := make([]store.SearchResult, len(order))
	for i, e := range order {
		r := e.result
		r.Score = e.score
		results[i] = r
	}
	return results
}
