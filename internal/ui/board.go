// Package ui renders the triage board: five urgency columns over the
// store's working set, with mark-read, star, archive, move, and reply
// actions wired to the optimistic mutator.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/asilva/triage/internal/model"
	"github.com/asilva/triage/internal/mutate"
	"github.com/asilva/triage/internal/store"
	"github.com/asilva/triage/internal/syncer"
	"github.com/asilva/triage/internal/views"
)

// snapshotMsg carries a fresh working-set snapshot from the store.
type snapshotMsg []model.Email

// syncResultMsg carries a completed sync run's outcome.
type syncResultMsg syncer.RunResult

// actionDoneMsg reports a finished user action.
type actionDoneMsg struct {
	what string
	err  error
}

// SessionExpiredMsg tells the outer program the backend rejected the
// session; the program quits so the user can log in again.
type SessionExpiredMsg struct{}

// actionTimeout bounds a single user-initiated backend call.
const actionTimeout = 15 * time.Second

// columnTitles maps each urgency to its board header.
var columnTitles = map[model.Urgency]string{
	model.UrgencyUrgent:    "Urgent",
	model.UrgencyHigh:      "High",
	model.UrgencyMedium:    "Medium",
	model.UrgencyLow:       "Low",
	model.UrgencyProcessed: "Processed",
}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	store *store.EmailStore
	sched *syncer.Scheduler
	mut   *mutate.Mutator

	theme Theme
	keys  KeyMap

	userName  string
	userEmail string

	snapshot []model.Email
	stats    model.Stats
	criteria views.Criteria

	focusCol int
	selected [5]int

	searching   bool
	searchInput textinput.Model

	replying    bool
	replyTarget model.Email
	replyForm   *huh.Form

	statusLine string
	errLine    string
	syncing    bool
	expired    bool

	snapCh chan []model.Email

	width  int
	height int
}

// New creates the dashboard model and subscribes it to the store.
func New(st *store.EmailStore, sched *syncer.Scheduler, mut *mutate.Mutator, theme Theme, user model.User) Model {
	search := textinput.New()
	search.Placeholder = "search subject or sender"
	search.CharLimit = 80

	snapCh := make(chan []model.Email, 8)
	st.Subscribe(func(snapshot []model.Email) {
		select {
		case snapCh <- snapshot:
		default:
		}
	})

	return Model{
		store:       st,
		sched:       sched,
		mut:         mut,
		theme:       theme,
		keys:        DefaultKeyMap(),
		userName:    user.Name,
		userEmail:   user.Email,
		criteria:    views.Criteria{FilterBy: views.FilterAll},
		searchInput: search,
		snapCh:      snapCh,
		width:       120,
		height:      40,
	}
}

// SessionExpired reports whether the dashboard exited because the backend
// rejected the session. The caller tears down stored credentials.
func (m Model) SessionExpired() bool {
	return m.expired
}

// Init starts the listeners for store snapshots and sync results.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.waitForSyncResult())
}

func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.snapCh)
	}
}

func (m Model) waitForSyncResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-m.sched.Results()
		if !ok {
			return nil
		}
		return syncResultMsg(result)
	}
}

// Update routes messages to the active mode: reply form, search input, or
// the board itself.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.snapshot = msg
		m.stats = views.Stats(m.snapshot)
		m.clampSelection()
		return m, m.waitForSnapshot()

	case syncResultMsg:
		m.syncing = false
		if msg.SessionExpired {
			m.expired = true
			return m, func() tea.Msg { return SessionExpiredMsg{} }
		}
		if msg.Err != nil {
			m.errLine = fmt.Sprintf("sync failed: %v", msg.Err)
		} else {
			m.errLine = ""
			m.statusLine = fmt.Sprintf(
				"synced %d received, %d sent in %s",
				msg.Received, msg.Sent, msg.Duration.Round(time.Millisecond),
			)
		}
		return m, m.waitForSyncResult()

	case actionDoneMsg:
		if msg.err != nil {
			m.errLine = fmt.Sprintf("%s: %v", msg.what, msg.err)
		} else {
			m.errLine = ""
			m.statusLine = msg.what
		}
		return m, nil

	case SessionExpiredMsg:
		return m, tea.Quit
	}

	if m.replying {
		return m.updateReply(msg)
	}
	if m.searching {
		return m.updateSearch(msg)
	}
	return m.updateBoard(msg)
}

func (m Model) updateBoard(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(keyMsg, m.keys.Left):
		if m.focusCol > 0 {
			m.focusCol--
		}

	case key.Matches(keyMsg, m.keys.Right):
		if m.focusCol < len(model.Urgencies)-1 {
			m.focusCol++
		}

	case key.Matches(keyMsg, m.keys.Up):
		if m.selected[m.focusCol] > 0 {
			m.selected[m.focusCol]--
		}

	case key.Matches(keyMsg, m.keys.Down):
		if m.selected[m.focusCol] < len(m.focusedColumn())-1 {
			m.selected[m.focusCol]++
		}

	case key.Matches(keyMsg, m.keys.Search):
		m.searching = true
		m.searchInput.SetValue(m.criteria.SearchTerm)
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(keyMsg, m.keys.CycleFilter):
		m.criteria.FilterBy = nextFilter(m.criteria.FilterBy)
		m.clampSelection()

	case key.Matches(keyMsg, m.keys.Refresh):
		if m.sched.Refresh() {
			m.syncing = true
			m.statusLine = "refreshing..."
		} else {
			m.statusLine = "sync already running"
		}

	case key.Matches(keyMsg, m.keys.MarkRead):
		if e, ok := m.selectedEmail(); ok {
			return m, m.markReadCmd(e.ID)
		}

	case key.Matches(keyMsg, m.keys.Star):
		if e, ok := m.selectedEmail(); ok {
			m.mut.ToggleStar(e.ID)
		}

	case key.Matches(keyMsg, m.keys.Archive):
		if e, ok := m.selectedEmail(); ok {
			if m.mut.Archive(e.ID) {
				m.statusLine = "archived locally (does not survive resync)"
			}
		}

	case key.Matches(keyMsg, m.keys.Move):
		if e, ok := m.selectedEmail(); ok {
			idx := int(keyMsg.Runes[0] - '1')
			if idx >= 0 && idx < len(model.Urgencies) {
				return m, m.moveCmd(e.ID, model.Urgencies[idx])
			}
		}

	case key.Matches(keyMsg, m.keys.Reply):
		if e, ok := m.selectedEmail(); ok && e.Received() {
			return m.startReply(e)
		}
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Back):
			m.searching = false
			m.criteria.SearchTerm = ""
			m.searchInput.Blur()
			m.clampSelection()
			return m, nil
		case keyMsg.String() == "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.criteria.SearchTerm = m.searchInput.Value()
	m.clampSelection()
	return m, cmd
}

func (m Model) markReadCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := m.mut.MarkAsRead(ctx, id); err != nil {
			return actionDoneMsg{what: "mark read", err: err}
		}
		return actionDoneMsg{what: "marked read"}
	}
}

func (m Model) moveCmd(id string, urgency model.Urgency) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := m.mut.MoveToBucket(ctx, id, urgency); err != nil {
			return actionDoneMsg{what: "move", err: err}
		}
		return actionDoneMsg{what: "moved to " + string(urgency)}
	}
}

// visible applies the current search and filter to the snapshot. While
// the search input is live the term matches fuzzily and ranks results,
// so a typo mid-keystroke still lands; a committed term filters by plain
// substring.
func (m Model) visible() []model.Email {
	if m.searching && strings.TrimSpace(m.criteria.SearchTerm) != "" {
		ranked := views.RankedSearch(m.snapshot, m.criteria.SearchTerm)
		return views.Filter(ranked, views.Criteria{FilterBy: m.criteria.FilterBy})
	}
	return views.Filter(m.snapshot, m.criteria)
}

func (m Model) focusedColumn() []model.Email {
	return views.Bucket(m.visible(), model.Urgencies[m.focusCol])
}

func (m Model) selectedEmail() (model.Email, bool) {
	col := m.focusedColumn()
	idx := m.selected[m.focusCol]
	if idx < 0 || idx >= len(col) {
		return model.Email{}, false
	}
	return col[idx], true
}

func (m *Model) clampSelection() {
	cols := views.Columns(m.visible())
	for i, u := range model.Urgencies {
		if n := len(cols[u]); m.selected[i] >= n {
			m.selected[i] = max(0, n-1)
		}
	}
}

func nextFilter(f views.FilterBy) views.FilterBy {
	switch f {
	case views.FilterAll:
		return views.FilterUnread
	case views.FilterUnread:
		return views.FilterStarred
	default:
		return views.FilterAll
	}
}

// View renders the header, stats bar, five columns, and the status line.
func (m Model) View() string {
	if m.replying {
		return m.replyForm.View()
	}

	var b strings.Builder

	header := fmt.Sprintf("Triage — %s <%s>", m.userName, m.userEmail)
	if m.syncing {
		header += "  ⟳"
	}
	b.WriteString(m.theme.Header.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.theme.StatsBar.Render(m.statsLine()))
	b.WriteString("\n")

	if m.searching {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}

	cols := views.Columns(m.visible())
	rendered := make([]string, 0, len(model.Urgencies))
	colWidth := max(20, m.width/len(model.Urgencies)-4)
	for i, u := range model.Urgencies {
		rendered = append(rendered, m.renderColumn(i, u, cols[u], colWidth))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	b.WriteString("\n")

	if m.errLine != "" {
		b.WriteString(m.theme.Error.Render(m.errLine))
	} else if m.statusLine != "" {
		b.WriteString(m.theme.Status.Render(m.statusLine))
	}

	return b.String()
}

func (m Model) statsLine() string {
	s := m.stats
	return fmt.Sprintf(
		"total %d · unread %d · starred %d · filter: %s"+
			" · urgent %d / high %d / medium %d / low %d / processed %d",
		s.Total, s.Unread, s.Starred, m.criteria.FilterBy,
		s.ByUrgency[model.UrgencyUrgent], s.ByUrgency[model.UrgencyHigh],
		s.ByUrgency[model.UrgencyMedium], s.ByUrgency[model.UrgencyLow],
		s.ByUrgency[model.UrgencyProcessed],
	)
}

func (m Model) renderColumn(idx int, urgency model.Urgency, emails []model.Email, width int) string {
	style := m.theme.Column
	if idx == m.focusCol {
		style = m.theme.FocusColumn
	}

	title := m.theme.ColumnTitle.
		Foreground(columnColors[string(urgency)]).
		Render(fmt.Sprintf("%d %s (%d)", idx+1, columnTitles[urgency], len(emails)))

	rows := []string{title}
	maxRows := max(3, (m.height-8)/3)
	for i, e := range emails {
		if i >= maxRows {
			rows = append(rows, m.theme.Dim.Render(fmt.Sprintf("… %d more", len(emails)-maxRows)))
			break
		}
		rows = append(rows, m.renderCard(e, idx == m.focusCol && i == m.selected[idx], width))
	}

	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func (m Model) renderCard(e model.Email, selected bool, width int) string {
	style := m.theme.Card
	if selected {
		style = m.theme.SelectedCard
	}

	var badges []string
	if !e.IsRead {
		badges = append(badges, "●")
	}
	if e.IsStarred {
		badges = append(badges, "★")
	}
	if e.HasAttachments {
		badges = append(badges, "📎")
	}
	if e.IsReply {
		badges = append(badges, "↩")
	}

	subject := e.Subject
	if !e.IsRead {
		subject = m.theme.Unread.Render(subject)
	}

	line1 := truncate(strings.Join(badges, "")+" "+subject, width)
	line2 := m.theme.Dim.Render(truncate(e.SenderDisplay+" · "+relativeTime(e.ReceivedAt), width))

	return style.Render(line1 + "\n" + line2)
}

func truncate(s string, width int) string {
	if width <= 1 || len([]rune(s)) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
