package syncer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asilva/triage/internal/config"
	"github.com/asilva/triage/internal/gateway"
	"github.com/asilva/triage/internal/model"
	"github.com/asilva/triage/internal/store"
)

// fakeGateway counts calls and lets tests inject failures and blocking.
type fakeGateway struct {
	syncCalls   atomic.Int32
	statusCalls atomic.Int32
	listCalls   atomic.Int32
	sentCalls   atomic.Int32

	syncErr   error
	statusErr error
	listErr   error
	sentErr   error

	received []model.Email
	sent     []model.Email

	// blockSync, when non-nil, stalls SyncFromRemote until closed.
	blockSync chan struct{}
	// started receives a signal each time a run reaches SyncFromRemote.
	started chan struct{}
}

func (f *fakeGateway) SyncFromRemote(ctx context.Context, opts gateway.SyncOptions) (*gateway.SyncSummary, error) {
	f.syncCalls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.blockSync != nil {
		select {
		case <-f.blockSync:
		case <-ctx.Done():
			return nil, &gateway.NetworkError{Op: "POST /emails/sync", Err: ctx.Err()}
		}
	}
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &gateway.SyncSummary{Success: true, Synced: len(f.received)}, nil
}

func (f *fakeGateway) SyncReadStatuses(ctx context.Context, limit int) (*gateway.StatusSummary, error) {
	f.statusCalls.Add(1)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &gateway.StatusSummary{Success: true}, nil
}

func (f *fakeGateway) ListEmails(ctx context.Context) ([]model.Email, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.received, nil
}

func (f *fakeGateway) ListSentEmails(ctx context.Context, perPage int) ([]model.Email, error) {
	f.sentCalls.Add(1)
	if f.sentErr != nil {
		return nil, f.sentErr
	}
	return f.sent, nil
}

func (f *fakeGateway) Ping(ctx context.Context) error { return nil }

func testConfig() config.SyncConfig {
	return config.SyncConfig{
		PollIntervalSec: 3600, // effectively manual-only in tests
		IngestCount:     50,
		Classify:        true,
		StatusLimit:     100,
		SentPerPage:     50,
	}
}

func received(id string, urgency model.Urgency) model.Email {
	return model.Email{ID: id, Urgency: urgency, EmailType: model.EmailTypeReceived}
}

func sent(id string) model.Email {
	return model.Email{
		ID:        "sent_" + id,
		Urgency:   model.UrgencyProcessed,
		IsRead:    true,
		EmailType: model.EmailTypeSent,
	}
}

func waitForResult(t *testing.T, s *Scheduler) RunResult {
	t.Helper()
	select {
	case r := <-s.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync result")
		return RunResult{}
	}
}

func TestScheduler_RunPopulatesStore(t *testing.T) {
	gw := &fakeGateway{
		received: []model.Email{received("a", model.UrgencyUrgent)},
		sent:     []model.Email{sent("x")},
	}
	st := store.New()
	s := New(gw, st, testConfig(), nil)

	s.Start()
	defer s.Stop()

	result := waitForResult(t, s)
	if result.Err != nil {
		t.Fatalf("run error = %v", result.Err)
	}
	if result.Received != 1 || result.Sent != 1 {
		t.Errorf("result counts = %d/%d, want 1/1", result.Received, result.Sent)
	}

	if snap := st.Snapshot(); len(snap) != 2 {
		t.Errorf("store snapshot length = %d, want 2", len(snap))
	}
}

func TestScheduler_NoOverlappingRuns(t *testing.T) {
	gw := &fakeGateway{
		blockSync: make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	st := store.New()
	s := New(gw, st, testConfig(), nil)

	s.Start()
	defer s.Stop()

	// Wait until the initial run is inside SyncFromRemote.
	select {
	case <-gw.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}

	// Triggers during an active run must be dropped, not queued.
	for i := 0; i < 3; i++ {
		if s.Refresh() {
			t.Error("Refresh() accepted while a run is active")
		}
	}

	close(gw.blockSync)
	waitForResult(t, s)

	// Give a wrongly-queued trigger a chance to fire a second run.
	time.Sleep(100 * time.Millisecond)

	if n := gw.syncCalls.Load(); n != 1 {
		t.Errorf("SyncFromRemote called %d times, want exactly 1", n)
	}
	if n := gw.listCalls.Load(); n != 1 {
		t.Errorf("ListEmails called %d times, want exactly 1", n)
	}
}

func TestScheduler_HalfFailureKeepsPreviousHalf(t *testing.T) {
	gw := &fakeGateway{
		received: []model.Email{received("a", model.UrgencyHigh)},
		sent:     []model.Email{sent("x")},
	}
	st := store.New()
	s := New(gw, st, testConfig(), nil)

	s.Start()
	defer s.Stop()
	if r := waitForResult(t, s); r.Err != nil {
		t.Fatalf("first run error = %v", r.Err)
	}

	// Second run: sent fetch fails, received succeeds with new data.
	gw.received = []model.Email{received("b", model.UrgencyLow)}
	gw.sentErr = &gateway.ServerError{Op: "GET /emails/sent", Status: 500}
	if !s.Refresh() {
		t.Fatal("Refresh() was dropped")
	}

	result := waitForResult(t, s)
	if result.Err != nil {
		t.Fatalf("half-failed run error = %v, want nil", result.Err)
	}

	snap := st.Snapshot()
	ids := make(map[string]bool, len(snap))
	for _, e := range snap {
		ids[e.ID] = true
	}
	if !ids["b"] {
		t.Error("new received half was not applied")
	}
	if !ids["sent_x"] {
		t.Error("previous sent half was not retained after its fetch failed")
	}
	if ids["a"] {
		t.Error("stale received email survived the replace")
	}
}

func TestScheduler_BothHalvesFailingFailsRun(t *testing.T) {
	gw := &fakeGateway{
		listErr: &gateway.ServerError{Op: "GET /emails/", Status: 500},
		sentErr: &gateway.ServerError{Op: "GET /emails/sent", Status: 500},
	}
	s := New(gw, store.New(), testConfig(), nil)

	s.Start()
	defer s.Stop()

	if result := waitForResult(t, s); result.Err == nil {
		t.Error("run error = nil, want failure when both halves fail")
	}
	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
}

func TestScheduler_AuthErrorPausesUntilResume(t *testing.T) {
	gw := &fakeGateway{syncErr: &gateway.AuthError{Op: "POST /emails/sync"}}
	s := New(gw, store.New(), testConfig(), nil)

	s.Start()
	defer s.Stop()

	result := waitForResult(t, s)
	if !result.SessionExpired {
		t.Fatal("SessionExpired = false for a 401 run")
	}

	// Paused: manual refresh is dropped and no further runs happen.
	if s.Refresh() {
		t.Error("Refresh() accepted while paused")
	}
	time.Sleep(100 * time.Millisecond)
	if n := gw.syncCalls.Load(); n != 1 {
		t.Errorf("SyncFromRemote called %d times while paused, want 1", n)
	}

	gw.syncErr = nil
	s.Resume()
	if !s.Refresh() {
		t.Fatal("Refresh() dropped after Resume")
	}
	if result := waitForResult(t, s); result.Err != nil {
		t.Errorf("post-resume run error = %v", result.Err)
	}
}

func TestScheduler_ServerErrorKeepsTimerAlive(t *testing.T) {
	gw := &fakeGateway{syncErr: &gateway.ServerError{Op: "POST /emails/sync", Status: 503}}
	s := New(gw, store.New(), testConfig(), nil)

	s.Start()
	defer s.Stop()

	result := waitForResult(t, s)
	if result.Err == nil {
		t.Fatal("run error = nil, want failure")
	}
	if result.SessionExpired {
		t.Error("SessionExpired = true for a plain server error")
	}

	// Not paused: the next manual refresh is accepted.
	gw.syncErr = nil
	if !s.Refresh() {
		t.Error("Refresh() dropped after a non-auth failure")
	}
	if result := waitForResult(t, s); result.Err != nil {
		t.Errorf("recovery run error = %v", result.Err)
	}
}

func TestScheduler_OnlyFreshRunsPruneStars(t *testing.T) {
	gw := &fakeGateway{received: []model.Email{received("a", model.UrgencyHigh)}}
	st := store.New()
	s := New(gw, st, testConfig(), nil)

	s.Start()
	defer s.Stop()
	if r := waitForResult(t, s); r.Err != nil {
		t.Fatalf("first run error = %v", r.Err)
	}
	st.ToggleStar("a")

	refresh := func() {
		t.Helper()
		if !s.Refresh() {
			t.Fatal("Refresh() was dropped")
		}
		waitForResult(t, s)
	}
	starredIDs := func() map[string]bool {
		out := make(map[string]bool)
		for _, e := range st.Snapshot() {
			if e.IsStarred {
				out[e.ID] = true
			}
		}
		return out
	}

	// Half-failed run: "a" is absent from the fresh received half, but a
	// fallback half was in play, so its star must not be pruned.
	gw.received = []model.Email{received("b", model.UrgencyLow)}
	gw.sentErr = &gateway.ServerError{Op: "GET /emails/sent", Status: 500}
	refresh()

	gw.sentErr = nil
	gw.received = []model.Email{received("a", model.UrgencyHigh), received("b", model.UrgencyLow)}
	refresh()
	if !starredIDs()["a"] {
		t.Fatal("star for a was pruned off a fallback run")
	}

	// Fully fresh run without "a": now the star may go.
	gw.received = []model.Email{received("b", model.UrgencyLow)}
	refresh()

	gw.received = []model.Email{received("a", model.UrgencyHigh), received("b", model.UrgencyLow)}
	refresh()
	if starredIDs()["a"] {
		t.Error("star for a survived a fresh run that aged it out")
	}
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	gw := &fakeGateway{
		blockSync: make(chan struct{}),
		started:   make(chan struct{}, 1),
	}
	s := New(gw, store.New(), testConfig(), nil)

	s.Start()
	select {
	case <-gw.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not cancel the in-flight run")
	}
}
