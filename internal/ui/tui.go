// Package ui provides the terminal interface.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/tasklane/internal/assistant"
	"github.com/nibzard/tasklane/internal/dates"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/workspace"
)

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	view         todo.View
	tickInterval time.Duration
}

// WithView selects the view shown on start.
func WithView(v todo.View) TUIOption {
	return func(c *tuiConfig) {
		c.view = v
	}
}

// WithRefreshInterval sets how often the list is reloaded.
func WithRefreshInterval(d time.Duration) TUIOption {
	return func(c *tuiConfig) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// RunTUI starts the TUI over ws.
func RunTUI(ctx context.Context, ws *workspace.Workspace, opts ...TUIOption) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	program := tea.NewProgram(newTUIModel(ctx, ws, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// viewKeys maps number keys to views.
var viewKeys = []struct {
	key  string
	kind todo.ViewKind
}{
	{"1", todo.ViewToday},
	{"2", todo.ViewUpcoming},
	{"3", todo.ViewInbox},
	{"4", todo.ViewImportant},
	{"5", todo.ViewAll},
	{"6", todo.ViewCompleted},
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	tabStyle      = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTab     = tabStyle.Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("63"))
	cursorStyle   = lipgloss.NewStyle().Bold(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	replyStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	priorityStyle = map[todo.Priority]lipgloss.Style{
		todo.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		todo.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		todo.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
)

type tuiModel struct {
	ctx          context.Context
	ws           *workspace.Workspace
	view         todo.View
	tasks        []todo.Task
	counts       todo.Counts
	today        dates.Date
	cursor       int
	err          error
	tickInterval time.Duration
	showHelp     bool

	prompting bool
	input     string
	busy      bool
	reply     string
	replyErr  bool
}

type tickMsg time.Time

type replyMsg struct {
	reply assistant.Reply
	err   error
}

func newTUIModel(ctx context.Context, ws *workspace.Workspace, opts ...TUIOption) *tuiModel {
	c := &tuiConfig{view: todo.View{Kind: todo.ViewToday}, tickInterval: 2 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return &tuiModel{
		ctx:          ctx,
		ws:           ws,
		view:         c.view,
		tickInterval: c.tickInterval,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	m.refresh()
	return tickCmd(m.tickInterval)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.updateList(msg)
	case tickMsg:
		m.refresh()
		return m, tickCmd(m.tickInterval)
	case replyMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.reply, m.replyErr = msg.err.Error(), true
		case msg.reply.Err != nil:
			m.reply, m.replyErr = msg.reply.Text, true
		default:
			m.reply, m.replyErr = msg.reply.Text, false
		}
		m.refresh()
	}
	return m, nil
}

func (m *tuiModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	for _, vk := range viewKeys {
		if key == vk.key {
			m.view = todo.View{Kind: vk.kind}
			m.cursor = 0
			m.refresh()
			return m, nil
		}
	}
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case "x", " ":
		m.toggleSelected()
	case "a":
		if !m.busy {
			m.prompting = true
			m.input = ""
		}
	case "r", "f5":
		m.refresh()
	case "h", "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *tuiModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.prompting = false
		m.input = ""
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input)
		m.prompting = false
		m.input = ""
		if text == "" {
			return m, nil
		}
		m.busy = true
		m.reply = ""
		return m, askCmd(m.ctx, m.ws, text)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *tuiModel) toggleSelected() {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return
	}
	t := m.tasks[m.cursor]
	m.err = m.ws.Update(m.ctx, func(s *todo.Store) error {
		return s.SetCompleted(t.ID, !t.Completed)
	})
	m.refresh()
}

func (m *tuiModel) refresh() {
	_ = m.ws.View(func(s *todo.Store) error {
		m.tasks = s.Query(m.view)
		m.counts = s.Counts()
		m.today = s.Today()
		return nil
	})
	if m.cursor >= len(m.tasks) {
		m.cursor = max(len(m.tasks)-1, 0)
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func askCmd(ctx context.Context, ws *workspace.Workspace, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := ws.Ask(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *tuiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tasklane") + "\n\n")
	writeTabs(&b, m.view.Kind, m.counts)

	if m.showHelp {
		writeHelp(&b)
		return b.String()
	}

	if len(m.tasks) == 0 {
		b.WriteString(mutedStyle.Render("  No tasks in this view.") + "\n")
	}
	for i := range m.tasks {
		b.WriteString(m.formatTask(&m.tasks[i], i == m.cursor))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	switch {
	case m.prompting:
		b.WriteString("Ask: " + m.input + "█\n\n")
	case m.busy:
		b.WriteString(mutedStyle.Render("Thinking...") + "\n\n")
	}
	if m.reply != "" {
		style := replyStyle
		if m.replyErr {
			style = style.BorderForeground(lipgloss.Color("203"))
		}
		b.WriteString(style.Render(m.reply) + "\n\n")
	}
	b.WriteString(mutedStyle.Render("1-6 views | j/k move | x toggle | a ask | h help | q quit") + "\n")
	return b.String()
}

func writeTabs(b *strings.Builder, active todo.ViewKind, c todo.Counts) {
	counts := map[todo.ViewKind]int{
		todo.ViewToday:     c.Today,
		todo.ViewUpcoming:  c.Upcoming,
		todo.ViewInbox:     c.Inbox,
		todo.ViewImportant: c.Important,
		todo.ViewAll:       c.All,
		todo.ViewCompleted: c.Completed,
	}
	tabs := make([]string, 0, len(viewKeys))
	for _, vk := range viewKeys {
		label := fmt.Sprintf("%s %s (%d)", vk.key, vk.kind, counts[vk.kind])
		if vk.kind == active {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  1-6          Today, upcoming, inbox, important, all, completed\n")
	b.WriteString("  j/k, ↑/↓     Move the selection\n")
	b.WriteString("  x, space     Toggle the selected task\n")
	b.WriteString("  a            Ask the assistant (enter sends, esc cancels)\n")
	b.WriteString("  r, F5        Refresh\n")
	b.WriteString("  h, ?         Toggle this help screen\n\n")
}

func (m *tuiModel) formatTask(t *todo.Task, selected bool) string {
	pointer := "  "
	if selected {
		pointer = cursorStyle.Render("> ")
	}
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	title := t.Title
	if t.Completed {
		title = doneStyle.Render(title)
	} else if selected {
		title = cursorStyle.Render(title)
	}

	line := fmt.Sprintf("%s%s %s %s", pointer, check, priorityStyle[t.Priority].Render("●"), title)
	if t.DueDate != "" {
		due := dates.Describe(t.DueDate, m.today)
		if !t.Completed && t.DueDate < m.today.String() {
			due = overdueStyle.Render(due)
		} else {
			due = mutedStyle.Render(due)
		}
		line += "  " + due
	}
	if len(t.Subtasks) > 0 {
		done := 0
		for _, st := range t.Subtasks {
			if st.Completed {
				done++
			}
		}
		line += mutedStyle.Render(fmt.Sprintf("  %d/%d", done, len(t.Subtasks)))
	}
	if len(t.Labels) > 0 {
		line += mutedStyle.Render("  #" + strings.Join(t.Labels, " #"))
	}
	return line
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
