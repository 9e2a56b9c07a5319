package ui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/asilva/triage/internal/model"
)

// replySentMsg reports the outcome of a reply send.
type replySentMsg struct {
	emailID string
	err     error
}

// startReply opens the reply form for the given email.
func (m Model) startReply(target model.Email) (tea.Model, tea.Cmd) {
	m.replying = true
	m.replyTarget = target
	// The form owns the draft text; the model is copied on every Update,
	// so a pointer into it would go stale.
	m.replyForm = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Key("body").
				Title("Reply to: "+target.Subject).
				Description("From "+target.SenderDisplay).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("reply body must not be empty")
					}
					return nil
				}),
		),
	)
	return m, m.replyForm.Init()
}

// updateReply drives the huh form until it completes or is aborted, then
// sends the reply through the mutator.
func (m Model) updateReply(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case replySentMsg:
		m.replying = false
		m.replyForm = nil
		if msg.err != nil {
			m.errLine = "reply failed: " + msg.err.Error()
		} else {
			m.errLine = ""
			m.statusLine = "reply sent"
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.replying = false
			m.replyForm = nil
			return m, nil
		}
	}

	form, cmd := m.replyForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.replyForm = f
	}

	switch m.replyForm.State {
	case huh.StateCompleted:
		id, body := m.replyTarget.ID, m.replyForm.GetString("body")
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
			defer cancel()
			return replySentMsg{emailID: id, err: m.mut.SendReply(ctx, id, body)}
		}
	case huh.StateAborted:
		m.replying = false
		m.replyForm = nil
		return m, nil
	}

	return m, cmd
}
