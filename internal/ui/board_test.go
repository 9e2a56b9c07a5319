package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asilva/triage/internal/model"
	"github.com/asilva/triage/internal/syncer"
	"github.com/asilva/triage/internal/views"
)

func boardEmail(id, subject string, read bool) model.Email {
	return model.Email{
		ID:        id,
		Subject:   subject,
		Urgency:   model.UrgencyHigh,
		IsRead:    read,
		EmailType: model.EmailTypeReceived,
	}
}

func TestVisible_LiveSearchIsFuzzy(t *testing.T) {
	m := Model{
		snapshot: []model.Email{
			boardEmail("e1", "Quarterly budget review", false),
			boardEmail("e2", "Lunch plans", true),
		},
		criteria: views.Criteria{SearchTerm: "bdget", FilterBy: views.FilterAll},
	}

	// Mid-keystroke the typo'd term still matches via ranked search.
	m.searching = true
	if got := m.visible(); len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("live visible() = %+v, want the budget email via fuzzy match", got)
	}

	// Once committed, matching is plain substring and the typo misses.
	m.searching = false
	if got := m.visible(); len(got) != 0 {
		t.Errorf("committed visible() = %+v, want empty for a typo'd term", got)
	}
}

func TestVisible_LiveSearchRespectsFilter(t *testing.T) {
	m := Model{
		snapshot: []model.Email{
			boardEmail("e1", "Budget report", false),
			boardEmail("e2", "Budget summary", true),
		},
		criteria: views.Criteria{SearchTerm: "budget", FilterBy: views.FilterUnread},
		searching: true,
	}

	got := m.visible()
	if len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("visible() = %+v, want only the unread match", got)
	}
}

func TestUpdate_SessionExpiryFlagsModelAndQuits(t *testing.T) {
	m := Model{}

	next, cmd := m.Update(syncResultMsg(syncer.RunResult{SessionExpired: true}))
	board, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	if !board.SessionExpired() {
		t.Error("SessionExpired() = false after an expired sync result")
	}
	if cmd == nil {
		t.Fatal("Update returned nil cmd, want a SessionExpiredMsg emitter")
	}
	if _, ok := cmd().(SessionExpiredMsg); !ok {
		t.Fatalf("cmd() = %T, want SessionExpiredMsg", cmd())
	}

	next, cmd = board.Update(SessionExpiredMsg{})
	board = next.(Model)
	if cmd == nil {
		t.Fatal("Update(SessionExpiredMsg) returned nil cmd, want quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
	}
	if !board.SessionExpired() {
		t.Error("expired flag lost across the quit transition")
	}
}
