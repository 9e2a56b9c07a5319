// Package app assembles the client: configuration, session, gateway,
// stores, scheduler, mutator, and the dashboard program.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asilva/triage/internal/config"
	"github.com/asilva/triage/internal/gateway"
	"github.com/asilva/triage/internal/model"
	"github.com/asilva/triage/internal/mutate"
	"github.com/asilva/triage/internal/session"
	"github.com/asilva/triage/internal/store"
	"github.com/asilva/triage/internal/syncer"
	"github.com/asilva/triage/internal/ui"
)

// Run is the application entry point: it authenticates (interactively if
// needed), wires the engine together, and blocks in the dashboard until
// the user quits or the session expires.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := newLogger(configPath)

	sess, err := ensureSession(cfg)
	if err != nil {
		return err
	}

	gw := gateway.NewClient(cfg.APIBaseURL, sess)

	// Refresh the user identity; a 401 here means the stored token is
	// dead, so tear down and log in once more.
	user, err := refreshProfile(gw, sess)
	if gateway.IsAuthError(err) {
		if err := sess.Teardown(); err != nil {
			return err
		}
		if sess, err = ensureSession(cfg); err != nil {
			return err
		}
		gw = gateway.NewClient(cfg.APIBaseURL, sess)
		if user, err = refreshProfile(gw, sess); err != nil {
			return err
		}
	} else if err != nil {
		log.Warn("profile fetch failed, using stored identity", "error", err)
		user = sess.User()
	}

	ann, err := store.NewAnnotationStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer ann.Close()

	st := store.New(store.WithAnnotations(ann), store.WithLogger(log))

	sched := syncer.New(gw, st, cfg.Sync, log)
	mut := mutate.New(st, gw)

	sched.Start()
	defer sched.Stop()

	board := ui.New(st, sched, mut, ui.ThemeByName(cfg.Display.Theme), user)
	program := tea.NewProgram(board, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}

	// A mid-session 401 quits the dashboard; the dead token must not be
	// offered again on the next start.
	if m, ok := final.(ui.Model); ok && m.SessionExpired() {
		if err := sess.Teardown(); err != nil {
			log.Warn("clearing expired credentials", "error", err)
		}
		fmt.Fprintln(os.Stderr, "session expired; run again to log in")
	}
	return nil
}

// ensureSession loads the stored session or walks the user through the
// OAuth login flow when there is none (or it is locally expired).
func ensureSession(cfg *config.Config) (*session.Session, error) {
	sess, err := session.Load()
	if err == nil && !sess.Expired() {
		return sess, nil
	}
	if err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		return nil, err
	}
	if sess != nil {
		_ = sess.Teardown()
	}

	return login(cfg)
}

// login fetches the OAuth URL, has the user complete it in a browser, and
// exchanges the pasted callback code for a session.
func login(cfg *config.Config) (*session.Session, error) {
	gw := gateway.NewClient(cfg.APIBaseURL, gateway.StaticToken(""))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authURL, err := gw.AuthURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching auth URL: %w", err)
	}

	code, err := promptForCode(authURL)
	if err != nil {
		return nil, err
	}

	exchangeCtx, cancelExchange := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelExchange()

	result, err := gw.Callback(exchangeCtx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging auth code: %w", err)
	}

	return session.Init(result.Token, result.User)
}

func refreshProfile(gw *gateway.Client, sess *session.Session) (model.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := gw.Profile(ctx)
	if err != nil {
		return model.User{}, err
	}
	sess.SetUser(*user)
	return *user, nil
}

// newLogger writes debug output to a file next to the config when
// TRIAGE_DEBUG is set; otherwise logging is discarded so it cannot fight
// the TUI for the terminal.
func newLogger(configPath string) *slog.Logger {
	if os.Getenv("TRIAGE_DEBUG") == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	path := filepath.Join(filepath.Dir(configPath), "triage.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
