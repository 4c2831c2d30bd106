// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/quiver/internal/cache"
	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/stats"
)

const (
	tabOverview = iota
	tabDistances
	tabSessions
)

const (
	plotHeight = 10
)

const (
	inputKind = iota
	inputSince
	inputLast
	inputCompleted
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	src   stats.SessionLister
	cache *cache.Cache
	cfg   model.StatsConfig

	report stats.Report
	cached bool
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model

	distTable  table.Model
	distLayout tableLayout
	sessTable  table.Model
	sessLayout tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string

	detail string
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
	colCount int
}

// NewModel constructs a stats UI model. c may be nil to always recompute.
func NewModel(src stats.SessionLister, c *cache.Cache, cfg model.StatsConfig) *Model {
	m := &Model{
		src:   src,
		cache: c,
		cfg:   cfg,
		tabs:  []string{"Overview", "Distances", "Sessions"},
	}
	m.overview = viewport.New(0, 0)
	m.distTable = newTable(distanceColumns(), 1)
	m.sessTable = newTable(sessionColumns(), 1)
	m.initInputs()
	m.refreshReport()
	return m
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
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.detail != "" {
			switch msg.String() {
			case "esc", "enter", "q":
				m.detail = ""
			}
			return m, nil
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "r":
			m.refreshReport()
			return m, nil
		case "enter":
			if m.activeTab == tabSessions {
				m.openDetail()
			}
			return m, nil
		case "g", "home":
			m.gotoTop()
			return m, nil
		case "G", "end":
			m.gotoBottom()
			return m, nil
		default:
			var cmd tea.Cmd
			switch m.activeTab {
			case tabDistances:
				m.distTable, cmd = m.distTable.Update(msg)
			case tabSessions:
				m.sessTable, cmd = m.sessTable.Update(msg)
			default:
				m.overview, cmd = m.overview.Update(msg)
			}
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.detail != "" {
		return fitLines(m.renderDetailModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Kind (practice/tournament): "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Completed only (y/n): "),
	}
	m.setInputsFromConfig()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	m.filterInputs[inputKind].SetValue(string(m.cfg.Kind))
	if m.cfg.Since != nil {
		m.filterInputs[inputSince].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[inputSince].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[inputLast].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[inputLast].SetValue("")
	}
	if m.cfg.Completed {
		m.filterInputs[inputCompleted].SetValue("y")
	} else {
		m.filterInputs[inputCompleted].SetValue("")
	}
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	setTableSize(&m.distTable, &m.distLayout, m.width, bodyHeight)
	setTableSize(&m.sessTable, &m.sessLayout, m.width, bodyHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.distTable.Blur()
	m.sessTable.Blur()
	switch m.activeTab {
	case tabDistances:
		m.distTable.Focus()
	case tabSessions:
		m.sessTable.Focus()
	}
}

func (m *Model) gotoTop() {
	switch m.activeTab {
	case tabDistances:
		m.distTable.GotoTop()
	case tabSessions:
		m.sessTable.GotoTop()
	default:
		m.overview.GotoTop()
	}
}

func (m *Model) gotoBottom() {
	switch m.activeTab {
	case tabDistances:
		m.distTable.GotoBottom()
	case tabSessions:
		m.sessTable.GotoBottom()
	default:
		m.overview.GotoBottom()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	kind := string(m.cfg.Kind)
	if kind == "" {
		kind = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	completed := "no"
	if m.cfg.Completed {
		completed = "yes"
	}
	summary := fmt.Sprintf("Filters: kind=%s  since=%s  last=%s  completed=%s", kind, since, last, completed)
	if m.cached {
		summary += "  (cached)"
	}
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Filters: /  Reload: r  Quit: q"
	if m.activeTab == tabSessions {
		help = "Nav: left/right  Select: up/down  Scorecard: enter  Filters: /  Reload: r  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filters (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	switch m.activeTab {
	case tabDistances:
		if m.report.Summary.Sessions == 0 {
			return fitLines("No sessions found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.distTable.View()), m.width, height)
	case tabSessions:
		if len(m.report.Sessions) == 0 {
			return fitLines("No sessions found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.sessTable.View()), m.width, height)
	default:
		return fitLines(m.overview.View(), m.width, height)
	}
}

func (m *Model) refreshReport() {
	report, hit, err := m.cache.Report(context.Background(), m.src, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.cached = false
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.cached = hit
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	applyTable(&m.distTable, &m.distLayout, distanceColumns(), distanceRows(report.Summary), width, bodyHeight, true)
	applyTable(&m.sessTable, &m.sessLayout, sessionColumns(), sessionRows(report.Sessions), width, bodyHeight, true)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		m.overview.SetContent("Failed to load stats.")
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, width))
}

func renderOverview(report stats.Report, width int) string {
	if report.Summary.Sessions == 0 {
		return "No sessions found."
	}
	summary := renderSummaryCards(report.Summary, width)
	trend := renderTrend(report.Sessions, width)
	if trend == "" {
		return summary
	}
	return strings.TrimRight(summary+"\n\n"+trend, "\n")
}

func renderSummaryCards(sum stats.Summary, width int) string {
	cards := []string{
		metricCard("Sessions", fmt.Sprintf("%d (%d done)", sum.Sessions, sum.Completed)),
		metricCard("Arrows", fmt.Sprintf("%d", sum.Arrows)),
		metricCard("Avg/arrow", fmt.Sprintf("%.2f", sum.OverallAverage)),
		metricCard("10/X", fmt.Sprintf("%.1f%%", sum.TenOrXPercent)),
		metricCard("X count", fmt.Sprintf("%d", sum.XCount)),
		metricCard("Best end", fmt.Sprintf("%d", sum.BestEnd)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderTrend(sessions []model.Session, width int) string {
	var buf bytes.Buffer
	if err := stats.RenderTrend(&buf, sessions, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render trend: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetStyles(tableStyles())
	return t
}

func distanceColumns() []table.Column {
	return []table.Column{
		{Title: "Distance", Width: 9},
		{Title: "All", Width: 7},
		{Title: "Practice", Width: 9},
		{Title: "Tournament", Width: 11},
	}
}

func distanceRows(sum stats.Summary) []table.Row {
	rows := make([]table.Row, 0, len(sum.Distances))
	if sum.Sessions == 0 {
		return rows
	}
	for _, d := range sum.Distances {
		rows = append(rows, table.Row{
			stats.FormatDistance(d.Distance),
			fmt.Sprintf("%.2f", d.All),
			fmt.Sprintf("%.2f", d.Practice),
			fmt.Sprintf("%.2f", d.Tournament),
		})
	}
	return rows
}

func sessionColumns() []table.Column {
	widths := []int{8, 16, 10, 8, 9, 5, 3, 10}
	cols := make([]table.Column, len(stats.SessionColumns))
	for i, title := range stats.SessionColumns {
		cols[i] = table.Column{Title: title, Width: widths[i]}
	}
	return cols
}

func sessionRows(sessions []model.Session) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, table.Row(stats.SessionRow(s)))
	}
	return rows
}

func applyTable(t *table.Model, layout *tableLayout, cols []table.Column, rows []table.Row, width, height int, force bool) {
	viewportHeight := maxInt(1, height-1)
	if !force &&
		layout.width == width &&
		layout.height == viewportHeight &&
		layout.rowCount == len(rows) &&
		layout.colCount == len(cols) {
		return
	}
	t.SetColumns(cols)
	t.SetRows(rows)
	layout.rowCount = len(rows)
	layout.colCount = len(cols)
	layout.width = 0
	setTableSize(t, layout, width, height)
}

func setTableSize(t *table.Model, layout *tableLayout, width, height int) {
	viewportHeight := maxInt(1, height-1)
	if layout.width == width && layout.height == viewportHeight {
		return
	}
	layout.width = width
	layout.height = viewportHeight
	t.SetWidth(width)
	t.SetHeight(viewportHeight)
	viewportHeight = adjustTableHeight(t, height)
	if layout.height != viewportHeight {
		layout.height = viewportHeight
		t.SetHeight(viewportHeight)
	}
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func adjustTableHeight(t *table.Model, bodyHeight int) int {
	target := maxInt(1, bodyHeight)
	height := t.Height()
	viewHeight := lipgloss.Height(t.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	t.SetHeight(height)
	viewHeight = lipgloss.Height(t.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	return height
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	var kind model.SessionKind
	if kindInput := strings.TrimSpace(m.filterInputs[inputKind].Value()); kindInput != "" {
		parsed, err := model.ParseSessionKind(kindInput)
		if err != nil {
			return fmt.Errorf("invalid kind (use practice or tournament)")
		}
		kind = parsed
	}

	sinceInput := strings.TrimSpace(m.filterInputs[inputSince].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	lastInput := strings.TrimSpace(m.filterInputs[inputLast].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	completed := false
	switch strings.ToLower(strings.TrimSpace(m.filterInputs[inputCompleted].Value())) {
	case "", "n", "no":
	case "y", "yes":
		completed = true
	default:
		return fmt.Errorf("invalid completed value (use y or n)")
	}

	m.cfg.Kind = kind
	m.cfg.Since = since
	m.cfg.Last = last
	m.cfg.Completed = completed
	return nil
}

func (m *Model) openDetail() {
	idx := m.sessTable.Cursor()
	if idx < 0 || idx >= len(m.report.Sessions) {
		return
	}
	var buf bytes.Buffer
	if err := stats.RenderScorecard(&buf, m.report.Sessions[idx]); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.detail = strings.TrimRight(buf.String(), "\n")
}

func (m *Model) renderDetailModal() string {
	body := []string{
		m.detail,
		"",
		headerStyle.Render("Esc to close"),
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 100))
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
