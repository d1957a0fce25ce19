package vecmath

import (
	"container/heap"
	"slices"
)

// Candidate is a vector identified by an entity id.
type Candidate struct {
	ID     string
	Vector []float32
}

// Neighbor is a scored candidate. Score follows the orientation of Score.
type Neighbor struct {
	ID    string
	Score float64
}

// better orders neighbors best first: higher score, then lower id.
func better(a, b Neighbor) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// worstHeap keeps the worst retained neighbor at the root.
type worstHeap []Neighbor

var _ heap.Interface = (*worstHeap)(nil)

func (h worstHeap) Len() int           { return len(h) }
func (h worstHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNearest returns the k candidates most similar to query under metric.
// Results are ordered best first with ties broken by id ascending.
// k == 0 yields an empty result; k larger than len(candidates) yields all of them.
func KNearest(query []float32, candidates []Candidate, k int, metric Metric) ([]Neighbor, error) {
	if k < 0 {
		return nil, ErrNegativeK
	}
	if k == 0 || len(candidates) == 0 {
		return []Neighbor{}, nil
	}

	h := make(worstHeap, 0, min(k, len(candidates)))
	for _, c := range candidates {
		s, err := Score(metric, query, c.Vector)
		if err != nil {
			return nil, err
		}
		n := Neighbor{ID: c.ID, Score: s}
		if h.Len() < k {
			heap.Push(&h, n)
			continue
		}
		if better(n, h[0]) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}

	out := []Neighbor(h)
	slices.SortFunc(out, func(a, b Neighbor) int {
		switch {
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		}
		return 0
	})
	return out, nil
}
