package stats

import (
	"sort"

	"github.com/verte-zerg/quiver/internal/model"
)

// WeakEnds selects the indexes of the lowest-scoring fully shot ends.
// Ends with unset slots are skipped and at least one shot end is always left out.
func WeakEnds(s model.Session, n int) map[int]struct{} {
	weak := map[int]struct{}{}
	if n <= 0 {
		return weak
	}
	type candidate struct {
		index int
		total int
	}
	var candidates []candidate
	for i, end := range s.Ends {
		if !endShot(end) {
			continue
		}
		candidates = append(candidates, candidate{index: i, total: endTotal(end)})
	}
	if len(candidates) < 2 {
		return weak
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].total == candidates[j].total {
			return candidates[i].index < candidates[j].index
		}
		return candidates[i].total < candidates[j].total
	})
	if n >= len(candidates) {
		n = len(candidates) - 1
	}
	for i := 0; i < n; i++ {
		weak[candidates[i].index] = struct{}{}
	}
	return weak
}

func endShot(end model.End) bool {
	for _, a := range end {
		if !a.IsSet() {
			return false
		}
	}
	return len(end) > 0
}
