package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/asilva/triage/internal/model"
)

// Listener receives the combined working-set snapshot after every
// committed mutation. Listeners are called synchronously, in registration
// order, outside the store lock.
type Listener func(snapshot []model.Email)

// EmailStore is the single client-side source of truth for the working
// set: the received list plus the sent/reply list. All writes funnel
// through ReplaceAll, Patch, Remove, and the star entry points; readers
// only ever see snapshot copies.
//
// Stars are a client-side annotation the backend knows nothing about, so
// ReplaceAll carries them forward for ids that survive the replacement and
// an optional AnnotationStore persists them across sessions.
type EmailStore struct {
	mu       sync.Mutex
	received []model.Email
	sent     []model.Email
	starred  map[string]bool
	seq      uint64

	listeners  []subscription
	nextListen int

	ann *AnnotationStore
	log *slog.Logger
}

type subscription struct {
	id       int
	fn       Listener
	delivery *deliveryState
}

// deliveryState serializes deliveries to one listener and tracks the
// newest snapshot it has seen, so a delivery that lost the race to a
// newer one is dropped instead of arriving late.
type deliveryState struct {
	mu      sync.Mutex
	lastSeq uint64
}

// Option configures an EmailStore.
type Option func(*EmailStore)

// WithAnnotations attaches a persistent annotation store. Starred ids are
// loaded from it at construction and star toggles are written through.
func WithAnnotations(ann *AnnotationStore) Option {
	return func(s *EmailStore) { s.ann = ann }
}

// WithLogger sets the logger used for annotation write failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *EmailStore) { s.log = log }
}

// New creates an empty EmailStore.
func New(opts ...Option) *EmailStore {
	s := &EmailStore{
		starred: make(map[string]bool),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ann != nil {
		ids, err := s.ann.StarredIDs(context.Background())
		if err != nil {
			s.log.Warn("loading persisted stars", "error", err)
		}
		for _, id := range ids {
			s.starred[id] = true
		}
	}
	return s
}

// ReplaceAll swaps in a freshly synced working set. Locally-set star
// annotations are carried forward for ids present in the new set; every
// other field comes from the new snapshot.
func (s *EmailStore) ReplaceAll(received, sent []model.Email) {
	s.mu.Lock()

	s.received = applyStars(cloneEmails(received), s.starred)
	s.sent = applyStars(cloneEmails(sent), s.starred)

	s.notifyLocked()
}

// Patch applies fn to the email with the given id and returns a copy of
// the email as it was before the patch. A missing id is a silent no-op,
// not an error: a patch may race a full replace that removed the email.
func (s *EmailStore) Patch(id string, fn func(*model.Email)) (model.Email, bool) {
	s.mu.Lock()

	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return model.Email{}, false
	}

	prev := *e
	fn(e)
	// The star map keeps ReplaceAll honest when fn touches IsStarred.
	if e.IsStarred != prev.IsStarred {
		s.setStarLocked(id, e.IsStarred)
	}

	s.notifyLocked()
	return prev, true
}

// Remove drops one email from the working set, e.g. after a successful
// reply removed the original from the received list. Missing ids are a
// no-op.
func (s *EmailStore) Remove(id string) bool {
	s.mu.Lock()

	removed := false
	s.received, removed = dropID(s.received, id)
	if !removed {
		s.sent, removed = dropID(s.sent, id)
	}
	if !removed {
		s.mu.Unlock()
		return false
	}

	s.notifyLocked()
	return true
}

// ToggleStar flips the star on one email, persisting the annotation when
// a store is attached. Returns the new starred state. Purely local; there
// is no backend counterpart for stars.
func (s *EmailStore) ToggleStar(id string) (bool, bool) {
	s.mu.Lock()

	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return false, false
	}

	e.IsStarred = !e.IsStarred
	s.setStarLocked(id, e.IsStarred)

	starred := e.IsStarred
	s.notifyLocked()
	return starred, true
}

// PruneStars drops star annotations, in memory and in the annotation
// database, for ids no longer in the working set. Callers must only
// invoke this after a fully fresh sync: pruning against a snapshot that
// contains a stale fallback half would drop stars on live mail. An empty
// working set is a no-op for the same reason.
func (s *EmailStore) PruneStars(ctx context.Context) error {
	s.mu.Lock()

	live := make([]string, 0, len(s.received)+len(s.sent))
	for _, e := range s.received {
		live = append(live, e.ID)
	}
	for _, e := range s.sent {
		live = append(live, e.ID)
	}
	if len(live) == 0 {
		s.mu.Unlock()
		return nil
	}

	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}
	for id := range s.starred {
		if !liveSet[id] {
			delete(s.starred, id)
		}
	}
	ann := s.ann
	s.mu.Unlock()

	if ann == nil {
		return nil
	}
	return ann.Prune(ctx, live)
}

// Clear empties the working set. Used on logout and session expiry.
func (s *EmailStore) Clear() {
	s.mu.Lock()
	s.received = nil
	s.sent = nil
	s.notifyLocked()
}

// Snapshot returns a copy of the combined working set, received first,
// then sent, each half in backend order.
func (s *EmailStore) Snapshot() []model.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener and returns its id for Unsubscribe.
func (s *EmailStore) Subscribe(fn Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListen
	s.nextListen++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn, delivery: &deliveryState{}})
	return id
}

// Unsubscribe removes a listener by id.
func (s *EmailStore) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.listeners {
		if sub.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// notifyLocked snapshots the set and the listener list, releases the lock,
// and delivers the snapshot. Callers must hold the lock; it is released
// on return. Delivering outside the lock lets listeners read the store
// without deadlocking; listeners must not write to the store.
//
// Each delivery carries the sequence number assigned under the store
// lock. Two writers can reach the delivery loop in either order, so a
// delivery older than what the listener already saw is dropped; the
// listener's last-seen snapshot is always the newest one.
func (s *EmailStore) notifyLocked() {
	s.seq++
	seq := s.seq
	snapshot := s.snapshotLocked()
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, sub := range listeners {
		sub.delivery.mu.Lock()
		if seq < sub.delivery.lastSeq {
			sub.delivery.mu.Unlock()
			continue
		}
		sub.delivery.lastSeq = seq
		sub.fn(snapshot)
		sub.delivery.mu.Unlock()
	}
}

func (s *EmailStore) snapshotLocked() []model.Email {
	out := make([]model.Email, 0, len(s.received)+len(s.sent))
	out = append(out, s.received...)
	out = append(out, s.sent...)
	return out
}

func (s *EmailStore) findLocked(id string) *model.Email {
	for i := range s.received {
		if s.received[i].ID == id {
			return &s.received[i]
		}
	}
	for i := range s.sent {
		if s.sent[i].ID == id {
			return &s.sent[i]
		}
	}
	return nil
}

func (s *EmailStore) setStarLocked(id string, starred bool) {
	if starred {
		s.starred[id] = true
	} else {
		delete(s.starred, id)
	}
	if s.ann != nil {
		if err := s.ann.SetStarred(context.Background(), id, starred); err != nil {
			s.log.Warn("persisting star", "id", id, "error", err)
		}
	}
}

func applyStars(emails []model.Email, starred map[string]bool) []model.Email {
	for i := range emails {
		if starred[emails[i].ID] {
			emails[i].IsStarred = true
		}
	}
	return emails
}

func cloneEmails(emails []model.Email) []model.Email {
	out := make([]model.Email, len(emails))
	copy(out, emails)
	return out
}

func dropID(emails []model.Email, id string) ([]model.Email, bool) {
	for i := range emails {
		if emails[i].ID == id {
			return append(emails[:i], emails[i+1:]...), true
		}
	}
	return emails, false
}
