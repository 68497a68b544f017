package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Lines per entry in the list view (title + subtitle + blank separator).
const entryItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

// filterCycle is the order the outcome filter steps through. "" means all.
var filterCycle = []string{
	"",
	OutcomeSaved,
	OutcomeDuplicateID,
	OutcomeDuplicatePair,
	OutcomeNoDescription,
	OutcomeDetailFailed,
}

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	entryTitleStyle = lipgloss.NewStyle().
			Bold(true)

	entrySubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedEntryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedEntrySubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(12)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	errorDetailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	outcomeStyles = map[string]lipgloss.Style{
		OutcomeSaved:         lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		OutcomeDuplicateID:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		OutcomeDuplicatePair: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		OutcomeNoDescription: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		OutcomeDetailFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type browseModel struct {
	allEntries []Entry
	entries    []Entry
	filterIdx  int
	cursor     int

	listViewport   viewport.Model
	detailViewport viewport.Model
	view           viewState
	width          int
	height         int
	ready          bool
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "f", "tab":
		m.filterIdx = (m.filterIdx + 1) % len(filterCycle)
		m.applyFilter()
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.entries)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.entries)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		if len(m.entries) == 0 {
			return m, nil
		}
		m.view = viewDetail
		m.detailViewport = viewport.New(m.width-4, m.height-4)
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil
	}

	// Forward other keys (pgup/pgdn/home/end) to the viewport.
	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *browseModel) applyFilter() {
	outcome := filterCycle[m.filterIdx]
	if outcome == "" {
		m.entries = m.allEntries
	} else {
		filtered := make([]Entry, 0, len(m.allEntries))
		for _, e := range m.allEntries {
			if e.Outcome == outcome {
				filtered = append(filtered, e)
			}
		}
		m.entries = filtered
	}
	m.cursor = 0
	if m.ready {
		m.listViewport.SetYOffset(0)
	}
}

func (m *browseModel) ensureCursorVisible() {
	cursorTop := m.cursor * entryItemHeight
	cursorBottom := cursorTop + entryItemHeight - 1

	if cursorTop < m.listViewport.YOffset {
		m.listViewport.SetYOffset(cursorTop)
	} else if cursorBottom >= m.listViewport.YOffset+m.listViewport.Height {
		m.listViewport.SetYOffset(cursorBottom - m.listViewport.Height + 1)
	}
}

func (m *browseModel) recalcLayout() {
	paneWidth := max(m.width-2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.listViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.listViewport.Width = paneWidth
		m.listViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.listViewport.SetContent(renderEntries(m.entries, m.cursor))
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m browseModel) viewList() string {
	filterName := filterCycle[m.filterIdx]
	if filterName == "" {
		filterName = "all"
	}
	header := headerStyle.Render(fmt.Sprintf(" Crawl Decisions — %s (%d)", filterName, len(m.entries)))

	pane := activeBorderStyle.Width(m.listViewport.Width).Render(m.listViewport.View())

	statusText := fmt.Sprintf(" %d recorded | %d shown    f/Tab filter  ↑/↓ cursor  Enter detail  q quit",
		len(m.allEntries), len(m.entries))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return header + "\n" + pane + "\n" + statusBar
}

func (m browseModel) viewDetail() string {
	title := detailTitleStyle.Render("Decision Details")

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusBar := statusBarStyle.Width(m.width).Render(" esc/backspace back  ↑/↓ scroll  q quit")

	return title + "\n" + content + "\n" + statusBar
}

func (m browseModel) renderDetail() string {
	if len(m.entries) == 0 {
		return ""
	}
	e := m.entries[clamp(m.cursor, 0, len(m.entries)-1)]
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Job ID", e.JobID)
	addField("Company", e.Company)
	addField("Title", e.Title)
	addField("Source", e.Source)
	addField("Query", e.Query)
	addField("Time", e.Time.Format("2006-01-02 15:04:05 MST"))

	b.WriteByte('\n')
	b.WriteString(detailLabelStyle.Render("Outcome"))
	b.WriteString(styleForOutcome(e.Outcome).Render(e.Outcome))
	b.WriteByte('\n')

	if e.Detail != "" {
		wrapWidth := max(m.width-8, 20)
		b.WriteByte('\n')
		b.WriteString(errorDetailStyle.Render(wordWrap(e.Detail, wrapWidth)))
		b.WriteByte('\n')
	}

	return b.String()
}

func renderEntries(entries []Entry, cursor int) string {
	if len(entries) == 0 {
		return "  (no entries)"
	}

	var b strings.Builder
	for i, e := range entries {
		isSelected := i == cursor

		titleSt := entryTitleStyle
		subtitleSt := entrySubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedEntryTitleStyle
			subtitleSt = selectedEntrySubtitleStyle
			prefix = "> "
		}

		title := e.JobID
		if e.Company != "" || e.Title != "" {
			title = strings.TrimSpace(e.Company + " · " + e.Title)
		}
		b.WriteString(prefix)
		b.WriteString(titleSt.Render(title))
		b.WriteByte('\n')

		subtitle := fmt.Sprintf("%s · %s · %s",
			styleForOutcome(e.Outcome).Render(e.Outcome),
			e.Source,
			e.Time.Format("2006-01-02 15:04"),
		)
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(subtitle))
		b.WriteByte('\n')

		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func styleForOutcome(outcome string) lipgloss.Style {
	if st, ok := outcomeStyles[outcome]; ok {
		return st
	}
	return entrySubtitleStyle
}

func sortEntriesByTime(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Time.After(entries[j].Time)
	})
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	return strings.Join(append(lines, line), "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunBrowseTUI launches the interactive audit browser over recorded crawl
// decisions, newest first.
func RunBrowseTUI(entries []Entry) error {
	sortEntriesByTime(entries)

	m := browseModel{allEntries: entries}
	m.applyFilter()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
