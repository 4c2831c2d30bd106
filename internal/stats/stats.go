// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"

	"github.com/verte-zerg/quiver/internal/model"
)

// DefaultDistances are the distance buckets, in metres, reported by default.
var DefaultDistances = []float64{18, 20, 30, 50, 70, 90}

// SessionResult is the per-session scorecard summary.
type SessionResult struct {
	TotalScore int     `json:"totalScore"`
	XCount     int     `json:"xCount"`
	TenCount   int     `json:"tenCount"`
	BestEnd    int     `json:"bestEnd"`
	AvgPerEnd  float64 `json:"avgPerEnd"`
	EndTotals  []int   `json:"endTotals"`
}

// DistanceRow holds per-arrow averages for one distance bucket.
type DistanceRow struct {
	Distance   float64 `json:"distance"`
	All        float64 `json:"all"`
	Practice   float64 `json:"practice"`
	Tournament float64 `json:"tournament"`
}

// Summary is the cross-session stats bundle.
type Summary struct {
	Archer         string        `json:"archer,omitempty"`
	BowType        string        `json:"bowType,omitempty"`
	Sessions       int           `json:"sessions"`
	Completed      int           `json:"completed"`
	Arrows         int           `json:"arrows"`
	TotalScore     int           `json:"totalScore"`
	OverallAverage float64       `json:"overallAverage"`
	TenOrXPercent  float64       `json:"tenOrXPercent"`
	XCount         int           `json:"xCount"`
	BestEnd        int           `json:"bestEnd"`
	Distances      []DistanceRow `json:"distances"`
}

// TotalScore sums the point value of every slot.
func TotalScore(s model.Session) int {
	total := 0
	for _, end := range s.Ends {
		total += endTotal(end)
	}
	return total
}

// XCount counts X slots.
func XCount(s model.Session) int {
	return s.CountX()
}

// TenCount counts slots scoring 10 or X.
func TenCount(s model.Session) int {
	count := 0
	for _, end := range s.Ends {
		for _, a := range end {
			if a.IsTenOrBetter() {
				count++
			}
		}
	}
	return count
}

// EndTotals returns the point total of each end in order.
func EndTotals(s model.Session) []int {
	out := make([]int, len(s.Ends))
	for i, end := range s.Ends {
		out[i] = endTotal(end)
	}
	return out
}

// BestEnd returns the highest end total, 0 for a session without ends.
func BestEnd(s model.Session) int {
	best := 0
	for _, end := range s.Ends {
		if t := endTotal(end); t > best {
			best = t
		}
	}
	return best
}

// AveragePerEnd returns the total divided by the declared end count.
func AveragePerEnd(s model.Session) float64 {
	if s.TotalEnds <= 0 {
		return 0
	}
	return round(float64(TotalScore(s))/float64(s.TotalEnds), 2)
}

// Result computes the scorecard summary for one session.
func Result(s model.Session) SessionResult {
	return SessionResult{
		TotalScore: TotalScore(s),
		XCount:     XCount(s),
		TenCount:   TenCount(s),
		BestEnd:    BestEnd(s),
		AvgPerEnd:  AveragePerEnd(s),
		EndTotals:  EndTotals(s),
	}
}

// AveragePerArrow divides the summed score by the summed slot capacity of
// the sessions. Unset slots count in the denominator. Returns 0 for no data.
func AveragePerArrow(sessions []model.Session) float64 {
	score, slots := 0, 0
	for _, s := range sessions {
		score += TotalScore(s)
		slots += s.TotalEnds * s.ArrowsPerEnd
	}
	if slots == 0 {
		return 0
	}
	return round(float64(score)/float64(slots), 2)
}

// TenOrXPercent is the share of shot arrows that scored 10 or X. Unset slots
// are excluded. Returns 0 for no data.
func TenOrXPercent(sessions []model.Session) float64 {
	tens, shot := 0, 0
	for _, s := range sessions {
		for _, end := range s.Ends {
			for _, a := range end {
				if !a.IsSet() {
					continue
				}
				shot++
				if a.IsTenOrBetter() {
					tens++
				}
			}
		}
	}
	if shot == 0 {
		return 0
	}
	return round(100*float64(tens)/float64(shot), 1)
}

// PerDistanceAverage applies AveragePerArrow within each distance bucket.
// Only exact distance matches count; every bucket is present in the result.
func PerDistanceAverage(sessions []model.Session, buckets []float64) map[float64]float64 {
	grouped := make(map[float64][]model.Session, len(buckets))
	for _, d := range buckets {
		grouped[d] = nil
	}
	for _, s := range sessions {
		if _, ok := grouped[s.Distance]; ok {
			grouped[s.Distance] = append(grouped[s.Distance], s)
		}
	}
	out := make(map[float64]float64, len(buckets))
	for d, group := range grouped {
		out[d] = AveragePerArrow(group)
	}
	return out
}

// FilterKind keeps sessions of the given kind. An empty kind keeps all.
func FilterKind(sessions []model.Session, kind model.SessionKind) []model.Session {
	if kind == "" {
		return sessions
	}
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// ShotArrows counts set slots across sessions.
func ShotArrows(sessions []model.Session) int {
	count := 0
	for _, s := range sessions {
		for _, end := range s.Ends {
			for _, a := range end {
				if a.IsSet() {
					count++
				}
			}
		}
	}
	return count
}

// Compute builds the summary for sessions. Archer details come from the
// first session, which is the newest when sessions come from the store.
func Compute(sessions []model.Session, buckets []float64) Summary {
	if len(buckets) == 0 {
		buckets = DefaultDistances
	}
	sum := Summary{
		Sessions:       len(sessions),
		Arrows:         ShotArrows(sessions),
		OverallAverage: AveragePerArrow(sessions),
		TenOrXPercent:  TenOrXPercent(sessions),
	}
	if len(sessions) > 0 {
		sum.Archer = sessions[0].ArcherLabel()
		sum.BowType = string(sessions[0].BowType)
	}
	for _, s := range sessions {
		if s.Completed {
			sum.Completed++
		}
		sum.TotalScore += TotalScore(s)
		sum.XCount += XCount(s)
		if b := BestEnd(s); b > sum.BestEnd {
			sum.BestEnd = b
		}
	}

	all := PerDistanceAverage(sessions, buckets)
	practice := PerDistanceAverage(FilterKind(sessions, model.Practice), buckets)
	tournament := PerDistanceAverage(FilterKind(sessions, model.Tournament), buckets)
	sum.Distances = make([]DistanceRow, 0, len(buckets))
	for _, d := range buckets {
		sum.Distances = append(sum.Distances, DistanceRow{
			Distance:   d,
			All:        all[d],
			Practice:   practice[d],
			Tournament: tournament[d],
		})
	}
	return sum
}

func endTotal(end model.End) int {
	total := 0
	for _, a := range end {
		total += a.Points()
	}
	return total
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
