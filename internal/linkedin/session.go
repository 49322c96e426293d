// Package linkedin implements the collaborator interfaces the engine
// consumes: a rod-driven browser session, the job search provider, and
// the Easy Apply form provider. All DOM mechanics live here; nothing in
// this package decides how a question is answered.
package linkedin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"easyapply/internal/config"
	"easyapply/internal/engine"
)

const (
	loginURL = "https://www.linkedin.com/login"
	jobsURL  = "https://www.linkedin.com/jobs/search/"

	// checkpointMarker appears in the URL when the platform asks for
	// manual verification after login.
	checkpointMarker = "/checkpoint"
)

// Session owns the exclusively held browser instance for one run.
type Session struct {
	creds config.LinkedInConfig
	cfg   config.BrowserConfig
	log   *zap.Logger

	browser *rod.Browser
	page    *rod.Page
}

// NewSession prepares a session; Start launches the browser.
func NewSession(creds config.LinkedInConfig, cfg config.BrowserConfig, log *zap.Logger) *Session {
	return &Session{creds: creds, cfg: cfg, log: log}
}

// Start launches Chrome and connects. The automation-controlled blink
// feature is disabled so the rendered page matches a regular session.
func (s *Session) Start(ctx context.Context) error {
	launch := launcher.New().Headless(s.cfg.Headless)
	if s.cfg.Bin != "" {
		launch = launch.Bin(s.cfg.Bin)
	}
	launch = launch.
		Set(flags.Flag("no-sandbox")).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("start-maximized"))

	controlURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}
	_, _ = page.EvalOnNewDocument(
		`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`)

	s.browser = browser
	s.page = page
	s.log.Info("browser started", zap.Bool("headless", s.cfg.Headless))
	return nil
}

// Login signs in with the configured credentials. When the platform
// redirects to a verification checkpoint the session waits, bounded, for
// the operator to complete it.
func (s *Session) Login(ctx context.Context) error {
	page := s.page.Context(ctx)
	if err := page.Timeout(s.cfg.NavigationTimeout()).Navigate(loginURL); err != nil {
		return s.fail(fmt.Errorf("open login page: %w", err))
	}

	username, err := page.Timeout(s.cfg.NavigationTimeout()).Element("#username")
	if err != nil {
		return s.fail(fmt.Errorf("login form did not load: %w", err))
	}
	if err := username.Input(s.creds.Email); err != nil {
		return s.fail(fmt.Errorf("enter email: %w", err))
	}
	password, err := page.Timeout(s.cfg.FieldWait()).Element("#password")
	if err != nil {
		return s.fail(fmt.Errorf("password field not found: %w", err))
	}
	if err := password.Input(s.creds.Password); err != nil {
		return s.fail(fmt.Errorf("enter password: %w", err))
	}
	submit, err := page.Timeout(s.cfg.FieldWait()).Element(`button[type="submit"]`)
	if err != nil {
		return s.fail(fmt.Errorf("login submit not found: %w", err))
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.fail(fmt.Errorf("submit login: %w", err))
	}
	if err := page.Timeout(s.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		return s.fail(fmt.Errorf("post-login load: %w", err))
	}

	return s.awaitAuthenticated(ctx)
}

// awaitAuthenticated polls the current URL until it leaves the login and
// checkpoint pages. Manual verification gets a generous bound.
func (s *Session) awaitAuthenticated(ctx context.Context) error {
	deadline := time.Now().Add(2 * time.Minute)
	warned := false
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
		info, err := s.page.Info()
		if err != nil {
			return s.fail(fmt.Errorf("read page info: %w", err))
		}
		switch {
		case strings.Contains(info.URL, checkpointMarker):
			if !warned {
				s.log.Warn("verification checkpoint detected, complete it in the browser window")
				warned = true
			}
		case strings.Contains(info.URL, "/login"):
			// still on the form, keep waiting
		default:
			s.log.Info("logged in")
			return nil
		}
	}
	return errors.New("login did not complete within the wait window")
}

// Close shuts the browser down.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	s.page = nil
	s.log.Info("browser closed")
	return err
}

// alive reports whether the browser connection still responds.
func (s *Session) alive() bool {
	if s.browser == nil {
		return false
	}
	_, err := s.browser.Version()
	return err == nil
}

// fail classifies a collaborator error: when the session no longer
// responds the error wraps engine.ErrSessionLost so the run aborts
// instead of degrading attempt by attempt.
func (s *Session) fail(err error) error {
	if err == nil {
		return nil
	}
	if !s.alive() {
		return fmt.Errorf("%w: %v", engine.ErrSessionLost, err)
	}
	return err
}
