package tui

import (
	"testing"

	"github.com/verte-zerg/quiver/internal/model"
)

func TestBuildSlotCellsCursor(t *testing.T) {
	end := model.End{model.X, model.Unset}
	cells := buildSlotCells(end, 0, model.Position{End: 0, Arrow: 1}, false)
	if len(cells) != 3 {
		t.Fatalf("expected 2 slots and a gap, got %d cells", len(cells))
	}
	if cells[0].s != goldStyle.Render(" X") {
		t.Fatalf("expected gold style for X")
	}
	if !cells[1].isGap {
		t.Fatalf("expected gap between slots")
	}
	if cells[2].s != pendingStyle.Underline(true).Bold(true).Render(" ·") {
		t.Fatalf("expected cursor style for unset slot under cursor")
	}
}

func TestBuildSlotCellsNoCursorWhenLocked(t *testing.T) {
	end := model.End{model.Miss}
	cells := buildSlotCells(end, 0, model.Position{}, true)
	if cells[0].s != missStyle.Render(" M") {
		t.Fatalf("expected plain miss style on a locked session")
	}
}

func TestBuildSlotCellsStyles(t *testing.T) {
	end := model.End{10, 7}
	cells := buildSlotCells(end, 3, model.Position{}, false)
	if cells[0].s != goldStyle.Render("10") {
		t.Fatalf("expected gold style for 10")
	}
	if cells[2].s != plainStyle.Render(" 7") {
		t.Fatalf("expected plain style for 7")
	}
}

func TestWrapCellsBreaksAtGap(t *testing.T) {
	cells := []styledCell{
		{s: "aa", width: 2},
		gapCell,
		{s: "bb", width: 2},
		gapCell,
		{s: "cc", width: 2},
	}
	lines := wrapCells(cells, 5)
	if len(lines) != 2 || lines[0] != "aa" || lines[1] != "bb cc" {
		t.Fatalf("unexpected wrap: %q", lines)
	}
}

func TestWrapCellsDisabled(t *testing.T) {
	cells := []styledCell{{s: "aa", width: 2}, gapCell, {s: "bb", width: 2}}
	lines := wrapCells(cells, 0)
	if len(lines) != 1 || lines[0] != "aa bb" {
		t.Fatalf("unexpected output: %q", lines)
	}
}

func TestPadLeft(t *testing.T) {
	if got := padLeft("X", 2); got != " X" {
		t.Fatalf("unexpected pad %q", got)
	}
	if got := padLeft("10", 2); got != "10" {
		t.Fatalf("unexpected pad %q", got)
	}
}
