// Package tui provides the Bubble Tea scoring interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/scoring"
	statsPkg "github.com/verte-zerg/quiver/internal/stats"
)

// Scorer is the slice of the score repository the TUI drives.
type Scorer interface {
	SetArrow(ctx context.Context, id string, end, arrow int, value model.ArrowScore) (model.Session, error)
	UndoLastArrow(ctx context.Context, id string) (model.Position, bool, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	CompleteSession(ctx context.Context, id string) (model.Session, error)
	ListSessionsForOwner(ctx context.Context, ownerID string) ([]model.Session, error)
}

// Model implements the Bubble Tea scoring UI for one session.
type Model struct {
	scorer  Scorer
	session model.Session
	cursor  model.Position

	width  int
	height int

	status    string
	statusErr bool

	lastTotal int
	hasLast   bool
	allAvg    float64
	hasAll    bool
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	plainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	goldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	missStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	weakStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// NewModel constructs a scoring TUI model for s. The cursor starts on the
// first unscored slot.
func NewModel(scorer Scorer, s model.Session) *Model {
	m := &Model{
		scorer:  scorer,
		session: s,
	}
	m.cursor = firstUnset(s)
	m.loadFooterStats()
	return m
}

// Session returns the session as last written.
func (m *Model) Session() model.Session {
	return m.session
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyBackspace:
			m.handleUndo()
		case tea.KeyDelete:
			m.setAtCursor(model.Unset)
		case tea.KeyEnter:
			m.handleComplete()
		case tea.KeyLeft:
			m.move(0, -1)
		case tea.KeyRight:
			m.move(0, 1)
		case tea.KeyUp:
			m.move(-1, 0)
		case tea.KeyDown:
			m.move(1, 0)
		case tea.KeyTab:
			m.cursor = firstUnset(m.session)
		case tea.KeyRunes:
			if quit := m.handleRunes(msg.Runes); quit {
				return m, tea.Quit
			}
		}
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	lines := []string{headerStyle.Render(m.renderHeader()), ""}
	lines = append(lines, m.renderEnds()...)
	if m.status != "" {
		style := footerStyle
		if m.statusErr {
			style = errorStyle
		}
		lines = append(lines, "", style.Render(m.status))
	}
	content := strings.Join(lines, "\n")
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) handleRunes(runes []rune) bool {
	for _, r := range runes {
		switch r {
		case 'q', 'Q':
			return true
		case 'h':
			m.move(0, -1)
		case 'l':
			m.move(0, 1)
		case 'k':
			m.move(-1, 0)
		case 'j':
			m.move(1, 0)
		default:
			if value, ok := scoreForKey(r); ok {
				m.setAtCursor(value)
			}
		}
	}
	return false
}

// scoreForKey maps 1-9 to rings, 0 to 10, x to X and m to a miss.
func scoreForKey(r rune) (model.ArrowScore, bool) {
	switch {
	case r >= '1' && r <= '9':
		return model.ArrowScore(r - '0'), true
	case r == '0':
		return model.ArrowScore(10), true
	case r == 'x' || r == 'X':
		return model.X, true
	case r == 'm' || r == 'M':
		return model.Miss, true
	}
	return model.Unset, false
}

func (m *Model) setAtCursor(value model.ArrowScore) {
	ctx := context.Background()
	s, err := m.scorer.SetArrow(ctx, m.session.ID, m.cursor.End, m.cursor.Arrow, value)
	if err != nil {
		m.fail(err)
		return
	}
	m.session = s
	m.clearStatus()
	if value.IsSet() {
		m.cursor = nextPosition(s, m.cursor)
	}
}

func (m *Model) handleUndo() {
	ctx := context.Background()
	pos, ok, err := m.scorer.UndoLastArrow(ctx, m.session.ID)
	if err != nil {
		m.fail(err)
		return
	}
	if !ok {
		m.setStatus("Nothing to undo")
		return
	}
	s, err := m.scorer.GetSession(ctx, m.session.ID)
	if err != nil {
		m.fail(err)
		return
	}
	m.session = s
	m.cursor = pos
	m.clearStatus()
}

func (m *Model) handleComplete() {
	ctx := context.Background()
	s, err := m.scorer.CompleteSession(ctx, m.session.ID)
	if err != nil {
		var incomplete *scoring.IncompleteSessionError
		if errors.As(err, &incomplete) && len(incomplete.Ends) > 0 {
			m.cursor = firstUnset(m.session)
			m.statusErr = true
			m.status = fmt.Sprintf("Unscored arrows in end %s", joinEnds(incomplete.Ends))
			return
		}
		m.fail(err)
		return
	}
	m.session = s
	m.setStatus(fmt.Sprintf("Session completed: %d points", statsPkg.TotalScore(s)))
	m.loadFooterStats()
}

func (m *Model) move(dEnd, dArrow int) {
	next := model.Position{End: m.cursor.End + dEnd, Arrow: m.cursor.Arrow + dArrow}
	if m.session.InBounds(next) {
		m.cursor = next
	}
}

func (m *Model) fail(err error) {
	m.statusErr = true
	switch {
	case errors.Is(err, scoring.ErrSessionLocked):
		m.status = "Session is completed; scores are locked"
	case errors.Is(err, scoring.ErrUnavailable):
		m.status = fmt.Sprintf("Storage unavailable, try again: %v", err)
	default:
		m.status = err.Error()
	}
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusErr = false
}

func (m *Model) clearStatus() {
	m.setStatus("")
}

func (m *Model) loadFooterStats() {
	ctx := context.Background()
	sessions, err := m.scorer.ListSessionsForOwner(ctx, m.session.OwnerID)
	if err != nil {
		m.fail(fmt.Errorf("failed to load session stats: %w", err))
		return
	}
	completed := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Completed {
			completed = append(completed, s)
		}
	}
	m.hasLast = false
	for _, s := range completed {
		if s.ID != m.session.ID {
			m.lastTotal = statsPkg.TotalScore(s)
			m.hasLast = true
			break
		}
	}
	m.hasAll = len(completed) > 0
	m.allAvg = statsPkg.AveragePerArrow(completed)
}

func (m *Model) renderHeader() string {
	s := m.session
	parts := []string{}
	if label := s.ArcherLabel(); label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, statsPkg.FormatDistance(s.Distance), string(s.Kind), string(s.BowType))
	if s.Completed {
		parts = append(parts, "completed")
	}
	return strings.Join(parts, " · ")
}

func (m *Model) renderFooter() string {
	s := m.session
	slots := s.TotalEnds * s.ArrowsPerEnd
	progress := 0
	if slots > 0 {
		progress = int(float64(statsPkg.ShotArrows([]model.Session{s})) / float64(slots) * 100)
	}
	res := statsPkg.Result(s)
	segments := []string{
		fmt.Sprintf("Progress %d%%", progress),
		fmt.Sprintf("Total %d", res.TotalScore),
		fmt.Sprintf("X %d", res.XCount),
		fmt.Sprintf("Avg/end %.2f", res.AvgPerEnd),
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d", m.lastTotal))
	}
	if m.hasAll {
		segments = append(segments, fmt.Sprintf("All-time %.2f/arrow", m.allAvg))
	}
	footer := strings.Join(segments, "  ")
	if !s.Completed {
		footer += "  ·  1-9 0=10 x m  ⌫ undo  del clear  ⏎ complete  q quit"
	}
	return footerStyle.Render(footer)
}

// firstUnset returns the first unscored slot, or the last slot when every
// slot is scored.
func firstUnset(s model.Session) model.Position {
	for e, end := range s.Ends {
		for a, slot := range end {
			if !slot.IsSet() {
				return model.Position{End: e, Arrow: a}
			}
		}
	}
	if s.TotalEnds == 0 || s.ArrowsPerEnd == 0 {
		return model.Position{}
	}
	return model.Position{End: s.TotalEnds - 1, Arrow: s.ArrowsPerEnd - 1}
}

// nextPosition steps one slot forward in end-major order, staying on the
// last slot.
func nextPosition(s model.Session, p model.Position) model.Position {
	next := model.Position{End: p.End, Arrow: p.Arrow + 1}
	if next.Arrow >= s.ArrowsPerEnd {
		next = model.Position{End: p.End + 1}
	}
	if !s.InBounds(next) {
		return p
	}
	return next
}

func joinEnds(ends []int) string {
	parts := make([]string, len(ends))
	for i, e := range ends {
		parts[i] = fmt.Sprintf("%d", e+1)
	}
	return strings.Join(parts, ", ")
}
