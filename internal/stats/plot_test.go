package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Test Plot", []Series{
		{Name: "A", Values: []float64{300, 310, 305, 320}},
		{Name: "B", Values: []float64{290, 295, 300, 298}},
	}, 12, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1+4+1 {
		t.Fatalf("expected title, 4 rows and legend, got %d lines:\n%s", len(lines), out)
	}
	if lines[0] != "Test Plot" {
		t.Fatalf("unexpected title line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "   320 | ") || !strings.HasPrefix(lines[4], "   290 | ") {
		t.Fatalf("expected shared-scale axis labels:\n%s", out)
	}
	if !strings.Contains(lines[5], "A") || !strings.Contains(lines[5], "B") {
		t.Fatalf("expected legend with both series, got %q", lines[5])
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "A"}}, 10, 4); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(80); got != 80-axisLabelWidth-len(axisSeparator) {
		t.Fatalf("unexpected width %d", got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
	if got := PlotWidthFor(5); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestBrailleBit(t *testing.T) {
	want := map[[2]int]uint8{
		{0, 0}: 0x01, {0, 1}: 0x02, {0, 2}: 0x04, {0, 3}: 0x40,
		{1, 0}: 0x08, {1, 1}: 0x10, {1, 2}: 0x20, {1, 3}: 0x80,
	}
	for pos, bit := range want {
		if got := brailleBit(pos[0], pos[1]); got != bit {
			t.Fatalf("dot %v: expected %#x, got %#x", pos, bit, got)
		}
	}
}
