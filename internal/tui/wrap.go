package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/quiver/internal/model"
	statsPkg "github.com/verte-zerg/quiver/internal/stats"
)

const (
	slotWidth  = 2
	labelWidth = 6
)

type styledCell struct {
	s     string
	width int
	isGap bool
}

var gapCell = styledCell{s: " ", width: 1, isGap: true}

// buildSlotCells renders one end's slots, separated by gap cells. The slot
// under cursor is underlined.
func buildSlotCells(end model.End, endIdx int, cursor model.Position, locked bool) []styledCell {
	out := make([]styledCell, 0, len(end)*2)
	for i, slot := range end {
		if i > 0 {
			out = append(out, gapCell)
		}
		token := slot.String()
		style := slotStyle(slot)
		if !slot.IsSet() {
			token = "·"
		}
		if !locked && cursor.End == endIdx && cursor.Arrow == i {
			style = style.Underline(true).Bold(true)
		}
		out = append(out, styledCell{
			s:     style.Render(padLeft(token, slotWidth)),
			width: slotWidth,
		})
	}
	return out
}

func slotStyle(a model.ArrowScore) lipgloss.Style {
	switch {
	case !a.IsSet():
		return pendingStyle
	case a == model.Miss:
		return missStyle
	case a.IsTenOrBetter():
		return goldStyle
	default:
		return plainStyle
	}
}

func padLeft(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}

// renderEnds lays out the scorecard, one line per end unless the terminal is
// too narrow for the slots, in which case an end wraps at slot boundaries.
func (m *Model) renderEnds() []string {
	s := m.session
	weak := statsPkg.WeakEnds(s, 2)
	totals := statsPkg.EndTotals(s)
	running := 0
	width := 0
	if m.width > 0 {
		width = m.width - labelWidth - 12
	}

	lines := make([]string, 0, len(s.Ends))
	for i, end := range s.Ends {
		running += totals[i]
		label := pendingStyle.Render(padLeft(fmt.Sprintf("%d", i+1), labelWidth-2) + "  ")
		totalStyle := plainStyle
		if _, ok := weak[i]; ok {
			totalStyle = weakStyle
		}
		tail := "  " + totalStyle.Render(padLeft(fmt.Sprintf("%d", totals[i]), 3)) +
			"  " + pendingStyle.Render(padLeft(fmt.Sprintf("%d", running), 4))

		rows := wrapCells(buildSlotCells(end, i, m.cursor, s.Completed), width)
		indent := strings.Repeat(" ", labelWidth)
		for j, row := range rows {
			prefix := indent
			if j == 0 {
				prefix = label
			}
			if j == len(rows)-1 {
				row += tail
			}
			lines = append(lines, prefix+row)
		}
	}
	return lines
}

func renderCells(cells []styledCell) string {
	var b strings.Builder
	for _, item := range cells {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapCells splits cells into lines no wider than width, breaking at the
// last gap. A width of zero or less disables wrapping.
func wrapCells(cells []styledCell, width int) []string {
	if width <= 0 {
		return []string{renderCells(cells)}
	}
	var out []string
	line := make([]styledCell, 0, len(cells))
	lineWidth := 0
	lastGapIdx := -1

	for i := 0; i < len(cells); {
		item := cells[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastGapIdx >= 0 {
				out = append(out, renderCells(line[:lastGapIdx]))
				line = append([]styledCell{}, line[lastGapIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastGapIdx = lastGapIndex(line)
			} else {
				out = append(out, renderCells(line))
				line = line[:0]
				lineWidth = 0
				lastGapIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isGap {
			lastGapIdx = len(line) - 1
		}
		i++
	}
	out = append(out, renderCells(line))
	return out
}

func lineWidthOf(line []styledCell) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastGapIndex(line []styledCell) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isGap {
			return i
		}
	}
	return -1
}
