// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"

	"github.com/verte-zerg/quiver/internal/model"
)

// TopSessions returns the n highest-scoring sessions. Ties go to more X
// arrows, then to the newer session.
func TopSessions(sessions []model.Session, n int) []model.Session {
	if n <= 0 || len(sessions) == 0 {
		return nil
	}
	type item struct {
		session model.Session
		total   int
		xs      int
	}
	items := make([]item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, item{
			session: s,
			total:   TotalScore(s),
			xs:      XCount(s),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].total != items[j].total {
			return items[i].total > items[j].total
		}
		if items[i].xs != items[j].xs {
			return items[i].xs > items[j].xs
		}
		return items[i].session.CreatedAt.After(items[j].session.CreatedAt)
	})
	if n > len(items) {
		n = len(items)
	}
	out := make([]model.Session, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, items[i].session)
	}
	return out
}
