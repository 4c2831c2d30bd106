package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/quiver/internal/model"
)

// RenderSummary prints the cross-session summary and per-distance averages.
func RenderSummary(w io.Writer, sum Summary) error {
	if sum.Sessions == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	lines := []string{"Summary"}
	if sum.Archer != "" {
		lines = append(lines, fmt.Sprintf("Archer: %s (%s)", sum.Archer, sum.BowType))
	}
	lines = append(lines,
		fmt.Sprintf("Sessions: %d (%d completed)", sum.Sessions, sum.Completed),
		fmt.Sprintf("Arrows shot: %d", sum.Arrows),
		fmt.Sprintf("Total score: %d", sum.TotalScore),
		fmt.Sprintf("Average per arrow: %.2f", sum.OverallAverage),
		fmt.Sprintf("10/X: %.1f%%", sum.TenOrXPercent),
		fmt.Sprintf("X count: %d", sum.XCount),
		fmt.Sprintf("Best end: %d", sum.BestEnd),
		"",
		"Average per arrow by distance",
	)
	lines = append(lines, DistanceTable(sum.Distances)...)
	lines = append(lines, "")
	return writeLines(w, lines)
}

// DistanceTable formats per-distance rows as aligned text lines.
func DistanceTable(rows []DistanceRow) []string {
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			FormatDistance(r.Distance),
			fmt.Sprintf("%.2f", r.All),
			fmt.Sprintf("%.2f", r.Practice),
			fmt.Sprintf("%.2f", r.Tournament),
		})
	}
	return formatTable(
		[]string{"Distance", "All", "Practice", "Tournament"},
		tableRows,
		map[int]bool{1: true, 2: true, 3: true},
	)
}

// RenderScorecard prints one session's ends with per-end and running totals.
// The two weakest shot ends are marked with an asterisk.
func RenderScorecard(w io.Writer, s model.Session) error {
	status := "in progress"
	if s.Completed {
		status = "completed"
	}
	header := fmt.Sprintf("%s  %s %s  %s  %s", s.ID, FormatDistance(s.Distance), s.Kind, s.BowType, status)
	if label := s.ArcherLabel(); label != "" {
		header = label + "  " + header
	}

	headers := []string{"End"}
	for i := 1; i <= s.ArrowsPerEnd; i++ {
		headers = append(headers, strconv.Itoa(i))
	}
	headers = append(headers, "Total", "Running")
	rightAlign := map[int]bool{}
	for i := 1; i < len(headers); i++ {
		rightAlign[i] = true
	}

	weak := WeakEnds(s, 2)
	totals := EndTotals(s)
	running := 0
	rows := make([][]string, 0, len(s.Ends))
	for i, end := range s.Ends {
		running += totals[i]
		label := strconv.Itoa(i + 1)
		if _, ok := weak[i]; ok {
			label += "*"
		}
		row := []string{label}
		for _, a := range end {
			row = append(row, a.String())
		}
		row = append(row, strconv.Itoa(totals[i]), strconv.Itoa(running))
		rows = append(rows, row)
	}

	res := Result(s)
	lines := []string{header, ""}
	lines = append(lines, formatTable(headers, rows, rightAlign)...)
	lines = append(lines,
		"",
		fmt.Sprintf("Total: %d  X: %d  10+X: %d  Best end: %d  Avg/end: %.2f",
			res.TotalScore, res.XCount, res.TenCount, res.BestEnd, res.AvgPerEnd),
	)
	if missing := s.IncompleteEnds(); len(missing) > 0 && !s.Completed {
		lines = append(lines, fmt.Sprintf("Incomplete ends: %s", formatEnds(missing)))
	}
	return writeLines(w, lines)
}

// RenderSessionList prints one line per session, in the given order.
func RenderSessionList(w io.Writer, sessions []model.Session) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, SessionRow(s))
	}
	return writeLines(w, formatTable(SessionColumns, rows, map[int]bool{3: true, 5: true, 6: true}))
}

// SessionColumns are the headers of SessionRow.
var SessionColumns = []string{"ID", "Date", "Kind", "Distance", "Bow", "Score", "X", "Status"}

// SessionRow formats a session for list views.
func SessionRow(s model.Session) []string {
	status := fmt.Sprintf("%d/%d ends", s.TotalEnds-len(s.IncompleteEnds()), s.TotalEnds)
	if s.Completed {
		status = "completed"
	}
	return []string{
		ShortID(s.ID),
		s.CreatedAt.Format("2006-01-02 15:04"),
		string(s.Kind),
		FormatDistance(s.Distance),
		string(s.BowType),
		strconv.Itoa(TotalScore(s)),
		strconv.Itoa(s.XCount),
		status,
	}
}

// RenderTrend plots per-session totals, oldest first.
func RenderTrend(w io.Writer, sessions []model.Session, totalWidth, height int, useColor bool) error {
	if len(sessions) < 2 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Score per session", []Series{
		{Name: "Total", Values: SessionTotals(sessions)},
	}, width, height, useColor)
}

// FormatDistance prints a distance in metres without trailing zeros.
func FormatDistance(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64) + "m"
}

// ShortID returns the first eight characters of an id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatEnds(indexes []int) string {
	out := ""
	for i, idx := range indexes {
		if i > 0 {
			out += ", "
		}
		out += strconv.Itoa(idx + 1)
	}
	return out
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
