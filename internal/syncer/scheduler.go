// Package syncer drives the periodic full resync of the working set: it
// asks the backend to ingest and classify new mail, reconciles read
// statuses, fetches both list halves, and replaces the store contents.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/asilva/triage/internal/config"
	"github.com/asilva/triage/internal/gateway"
	"github.com/asilva/triage/internal/model"
	"github.com/asilva/triage/internal/store"
)

// State represents the scheduler's position in its run cycle.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Gateway is the slice of the backend client a sync run needs.
type Gateway interface {
	SyncFromRemote(ctx context.Context, opts gateway.SyncOptions) (*gateway.SyncSummary, error)
	SyncReadStatuses(ctx context.Context, limit int) (*gateway.StatusSummary, error)
	ListEmails(ctx context.Context) ([]model.Email, error)
	ListSentEmails(ctx context.Context, perPage int) ([]model.Email, error)
	Ping(ctx context.Context) error
}

// RunResult reports the outcome of one sync run on the result channel.
type RunResult struct {
	Started  time.Time
	Duration time.Duration
	Received int
	Sent     int
	Ingested int
	Err      error

	// SessionExpired is set when the backend answered 401 anywhere in the
	// run. Automatic runs stop until Resume is called after re-auth.
	SessionExpired bool
}

// runTimeout bounds a single run end to end.
const runTimeout = 60 * time.Second

// Scheduler owns the sync loop: a ticker for the periodic cadence, a
// trigger channel for manual refresh, and a single goroutine executing
// runs so no two runs can overlap. A trigger that arrives while a run is
// active is dropped, not queued; bounded staleness beats a backlog of
// stale rounds.
type Scheduler struct {
	gw    Gateway
	store *store.EmailStore
	cfg   config.SyncConfig
	log   *slog.Logger

	mu       sync.Mutex
	state    State
	paused   bool
	running  bool
	lastRecv []model.Email
	lastSent []model.Email

	resultCh  chan RunResult
	triggerCh chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a Scheduler. Nothing runs until Start.
func New(gw Gateway, st *store.EmailStore, cfg config.SyncConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		gw:        gw,
		store:     st,
		cfg:       cfg,
		log:       log,
		resultCh:  make(chan RunResult, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Results returns the channel on which run outcomes are delivered.
// Results are sent non-blockingly; a slow consumer drops reports, never
// stalls the loop.
func (s *Scheduler) Results() <-chan RunResult {
	return s.resultCh
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the sync loop and, when configured, the keepalive loop.
// The first run fires immediately. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	if s.cfg.KeepaliveIntervalSec > 0 {
		go s.keepalive(ctx)
	}
}

// Stop cancels any in-flight run and disposes the loop goroutine. The
// scheduler can be restarted with Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Refresh requests an immediate run. Returns false when the request was
// dropped because a run is already active or the scheduler is paused.
// A manual refresh does not reset the periodic ticker.
func (s *Scheduler) Refresh() bool {
	s.mu.Lock()
	if s.state == StateSyncing || s.paused {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	select {
	case s.triggerCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Resume re-enables automatic runs after a SessionExpired stop.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	interval := time.Duration(s.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 120 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.state = StateSyncing
	s.mu.Unlock()

	result := s.run(ctx)

	s.mu.Lock()
	if result.Err != nil {
		s.state = StateFailed
	} else {
		s.state = StateIdle
	}
	if result.SessionExpired {
		s.paused = true
	}
	s.mu.Unlock()

	// Triggers that arrived mid-run are dropped, not replayed.
	select {
	case <-s.triggerCh:
	default:
	}

	if result.Err != nil {
		s.log.Warn("sync run failed",
			"error", result.Err,
			"session_expired", result.SessionExpired,
			"duration", result.Duration)
	} else {
		s.log.Debug("sync run completed",
			"received", result.Received,
			"sent", result.Sent,
			"ingested", result.Ingested,
			"duration", result.Duration)
	}

	select {
	case s.resultCh <- result:
	default:
	}
}

// run executes the four phases of one sync cycle. Phases 1 and 2 are
// fatal on failure; in phase 3 each list half is independent, falling back
// to the previous snapshot for that half, and the run only fails when
// both halves fail. Any 401 marks the session expired.
func (s *Scheduler) run(ctx context.Context) RunResult {
	result := RunResult{Started: time.Now()}
	defer func() { result.Duration = time.Since(result.Started) }()

	ctx, cancelRun := context.WithTimeout(ctx, runTimeout)
	defer cancelRun()

	summary, err := s.gw.SyncFromRemote(ctx, gateway.SyncOptions{
		Count:    s.cfg.IngestCount,
		Classify: s.cfg.Classify,
	})
	if err != nil {
		result.Err = err
		result.SessionExpired = gateway.IsAuthError(err)
		return result
	}
	result.Ingested = summary.Synced

	if _, err := s.gw.SyncReadStatuses(ctx, s.cfg.StatusLimit); err != nil {
		result.Err = err
		result.SessionExpired = gateway.IsAuthError(err)
		return result
	}

	received, errRecv := s.gw.ListEmails(ctx)
	if errRecv != nil {
		if gateway.IsAuthError(errRecv) {
			result.Err = errRecv
			result.SessionExpired = true
			return result
		}
		s.log.Warn("received list fetch failed, keeping previous half", "error", errRecv)
		received = s.lastRecv
	}

	sent, errSent := s.gw.ListSentEmails(ctx, s.cfg.SentPerPage)
	if errSent != nil {
		if gateway.IsAuthError(errSent) {
			result.Err = errSent
			result.SessionExpired = true
			return result
		}
		s.log.Warn("sent list fetch failed, keeping previous half", "error", errSent)
		sent = s.lastSent
	}

	if errRecv != nil && errSent != nil {
		result.Err = errRecv
		return result
	}

	// lastRecv/lastSent are only touched by the loop goroutine.
	s.lastRecv = received
	s.lastSent = sent

	s.store.ReplaceAll(received, sent)
	result.Received = len(received)
	result.Sent = len(sent)

	// Stars for aged-out mail are only dropped when both halves are
	// fresh; a fallback half could hide mail that is still alive.
	if errRecv == nil && errSent == nil {
		if err := s.store.PruneStars(ctx); err != nil {
			s.log.Warn("pruning stale stars", "error", err)
		}
	}
	return result
}

// keepalive pings the backend on its own cadence so a free-tier instance
// does not spin down between sync runs.
func (s *Scheduler) keepalive(ctx context.Context) {
	interval := time.Duration(s.cfg.KeepaliveIntervalSec) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := s.gw.Ping(pingCtx); err != nil {
				s.log.Debug("keepalive ping failed", "error", err)
			}
			cancel()
		}
	}
}
