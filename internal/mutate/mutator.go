// Package mutate executes user actions against the working set with
// optimistic local application: the store is patched immediately, the
// backend is called, and the patch is rolled back if the call fails.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/asilva/triage/internal/gateway"
	"github.com/asilva/triage/internal/model"
	"github.com/asilva/triage/internal/store"
)

// ErrMutationPending is returned when an optimistic mutation is requested
// for an email that already has one in flight. Two unsettled mutations on
// the same id could interleave their rollbacks, so the second is rejected
// outright instead of queued.
var ErrMutationPending = errors.New("a mutation for this email is already in flight")

// MutationStatus tracks a pending mutation through its lifecycle.
type MutationStatus string

const (
	StatusPending    MutationStatus = "pending"
	StatusCommitted  MutationStatus = "committed"
	StatusRolledBack MutationStatus = "rolled_back"
)

// PendingMutation records one in-flight optimistic change: enough to
// identify it and to undo it.
type PendingMutation struct {
	ID      string
	EmailID string
	Field   string
	Status  MutationStatus

	prev model.Email
}

// Gateway is the slice of the backend client mutations need.
type Gateway interface {
	MarkAsRead(ctx context.Context, id string) (*gateway.MarkReadResult, error)
	UpdateUrgency(ctx context.Context, id string, urgency model.Urgency) error
	Reply(ctx context.Context, id, body string) error
}

// Mutator applies user actions to the store and reconciles them with the
// backend. Operations on different email ids run independently;
// operations on the same id are serialized by rejection (see
// ErrMutationPending).
type Mutator struct {
	store *store.EmailStore
	gw    Gateway

	mu       sync.Mutex
	inflight map[string]*PendingMutation
}

// New creates a Mutator bound to a store and gateway.
func New(st *store.EmailStore, gw Gateway) *Mutator {
	return &Mutator{
		store:    st,
		gw:       gw,
		inflight: make(map[string]*PendingMutation),
	}
}

// MarkAsRead optimistically flags the email read, then confirms with the
// backend. On any failure the flag is rolled back to its previous value
// before the error is returned. Marking an email the store no longer
// holds is a no-op.
func (m *Mutator) MarkAsRead(ctx context.Context, id string) error {
	pm, err := m.begin(id, "is_read")
	if err != nil {
		return err
	}
	defer m.finish(pm)

	prev, found := m.store.Patch(id, func(e *model.Email) { e.IsRead = true })
	if !found {
		pm.Status = StatusCommitted
		return nil
	}
	pm.prev = prev

	res, err := m.gw.MarkAsRead(ctx, id)
	if err != nil {
		m.rollback(pm, func(e *model.Email) { e.IsRead = prev.IsRead })
		return fmt.Errorf("marking %s as read: %w", id, err)
	}
	if !res.Success {
		m.rollback(pm, func(e *model.Email) { e.IsRead = prev.IsRead })
		return fmt.Errorf("marking %s as read: backend refused: %s", id, res.Error)
	}

	pm.Status = StatusCommitted
	return nil
}

// MoveToBucket optimistically moves the email to another urgency bucket,
// then confirms with the backend; a failed call restores the previous
// bucket. Sent and reply messages live permanently in processed and
// cannot be moved.
func (m *Mutator) MoveToBucket(ctx context.Context, id string, urgency model.Urgency) error {
	if !urgency.Valid() {
		return &gateway.ValidationError{Message: fmt.Sprintf("invalid urgency %q", urgency)}
	}

	if e, ok := m.find(id); ok && !e.Received() {
		return &gateway.ValidationError{Message: "sent messages cannot leave the processed column"}
	}

	pm, err := m.begin(id, "urgency")
	if err != nil {
		return err
	}
	defer m.finish(pm)

	prev, found := m.store.Patch(id, func(e *model.Email) {
		e.Urgency = urgency
		if urgency == model.UrgencyProcessed {
			// The backend marks processed mail read; mirror it locally.
			e.IsRead = true
		}
	})
	if !found {
		pm.Status = StatusCommitted
		return nil
	}
	pm.prev = prev

	if err := m.gw.UpdateUrgency(ctx, id, urgency); err != nil {
		m.rollback(pm, func(e *model.Email) {
			e.Urgency = prev.Urgency
			e.IsRead = prev.IsRead
		})
		return fmt.Errorf("moving %s to %s: %w", id, urgency, err)
	}

	pm.Status = StatusCommitted
	return nil
}

// ToggleStar flips the star on an email. Stars are a client-side
// annotation with no backend counterpart, so the local flip always
// succeeds and nothing can roll it back.
func (m *Mutator) ToggleStar(id string) bool {
	_, found := m.store.ToggleStar(id)
	return found
}

// Archive moves an email to processed locally without a backend call.
// There is no remote archive contract, so the change does not survive the
// next resync; the backend still holds the original bucket.
func (m *Mutator) Archive(id string) bool {
	_, found := m.store.Patch(id, func(e *model.Email) {
		e.Urgency = model.UrgencyProcessed
		e.IsRead = true
	})
	return found
}

// SendReply sends a reply to the given email. Not optimistic: the store
// is only touched after the backend confirms, at which point the original
// is removed from the working set (the sent reply shows up in processed
// on the next sync). Validation and server errors propagate to the caller
// for inline display.
func (m *Mutator) SendReply(ctx context.Context, id, body string) error {
	if err := m.gw.Reply(ctx, id, body); err != nil {
		return err
	}

	m.store.Remove(id)
	return nil
}

// Pending returns a snapshot of the in-flight mutations.
func (m *Mutator) Pending() []PendingMutation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingMutation, 0, len(m.inflight))
	for _, pm := range m.inflight {
		out = append(out, *pm)
	}
	return out
}

func (m *Mutator) begin(id, field string) (*PendingMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inflight[id]; busy {
		return nil, ErrMutationPending
	}

	pm := &PendingMutation{
		ID:      uuid.New().String(),
		EmailID: id,
		Field:   field,
		Status:  StatusPending,
	}
	m.inflight[id] = pm
	return pm, nil
}

func (m *Mutator) finish(pm *PendingMutation) {
	m.mu.Lock()
	delete(m.inflight, pm.EmailID)
	m.mu.Unlock()
}

func (m *Mutator) rollback(pm *PendingMutation, undo func(*model.Email)) {
	m.store.Patch(pm.EmailID, undo)
	pm.Status = StatusRolledBack
}

func (m *Mutator) find(id string) (model.Email, bool) {
	for _, e := range m.store.Snapshot() {
		if e.ID == id {
			return e, true
		}
	}
	return model.Email{}, false
}
