package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const homeURL = "https://www.facebook.com/"

// loggedInAnchors are UI elements that only render with an active session.
// Probed in order; the first hit wins.
var loggedInAnchors = []anchor{
	{css: `[aria-label="Facebook"]`},
	{css: `[aria-label="Home"]`},
	{css: `[aria-label="Your profile"]`},
	{css: `[role="navigation"]`},
	{xpath: `//a[contains(@href, "/me/")]`},
}

// loginPollAnchors is the reduced set checked while waiting out manual
// verification after submitting credentials.
var loginPollAnchors = []anchor{
	{css: `[aria-label="Facebook"]`},
	{css: `[aria-label="Home"]`},
	{css: `[role="navigation"]`},
}

type anchor struct {
	css   string
	xpath string
}

// SessionConfig carries everything one Session needs. Credentials and the
// cookie path are injected here, never read from process-wide state.
type SessionConfig struct {
	Email    string
	Password string

	// AnchorTimeout is the individual probe timeout per anchor. Default 5s.
	AnchorTimeout time.Duration
	// LoginPollInterval is the pause between logged-in checks after
	// submitting credentials. Default 5s.
	LoginPollInterval time.Duration
	// LoginWaitCeiling bounds the whole manual-verification wait.
	// Default 120s.
	LoginWaitCeiling time.Duration

	Logger *slog.Logger
}

func (c *SessionConfig) defaults() {
	if c.AnchorTimeout <= 0 {
		c.AnchorTimeout = 5 * time.Second
	}
	if c.LoginPollInterval <= 0 {
		c.LoginPollInterval = 5 * time.Second
	}
	if c.LoginWaitCeiling <= 0 {
		c.LoginWaitCeiling = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session drives authentication against facebook.com on one browser. It is
// the sole owner of the cookie jar for its lifetime.
type Session struct {
	browser *rod.Browser
	jar     *CookieJar
	cfg     SessionConfig
	page    *rod.Page
}

// NewSession creates a Session on an already-started browser.
func NewSession(b *rod.Browser, jar *CookieJar, cfg SessionConfig) *Session {
	cfg.defaults()
	return &Session{browser: b, jar: jar, cfg: cfg}
}

// Page returns the session's main page, creating it on first use with
// stealth applied.
func (s *Session) Page() (*rod.Page, error) {
	if s.page != nil {
		return s.page, nil
	}
	p, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	s.page = p
	return p, nil
}

// LoadCookies injects the persisted cookie set into the browser. The page
// navigates to the platform domain first: cookies cannot attach before a
// same-domain navigation.
func (s *Session) LoadCookies(ctx context.Context) (CookieLoadResult, error) {
	params, res, err := s.jar.Load()
	if err != nil {
		return CookiesMissing, err
	}
	if res == CookiesMissing {
		s.cfg.Logger.Info("session: no persisted cookies")
		return CookiesMissing, nil
	}

	page, err := s.Page()
	if err != nil {
		return CookiesMissing, err
	}
	if err := page.Context(ctx).Navigate(homeURL); err != nil {
		return CookiesMissing, fmt.Errorf("browser: navigate %s: %w", homeURL, err)
	}
	page.Context(ctx).WaitLoad()

	if err := s.browser.SetCookies(params); err != nil {
		return CookiesMissing, fmt.Errorf("browser: set cookies: %w", err)
	}
	s.cfg.Logger.Info("session: cookies loaded", "path", s.jar.Path(), "count", len(params))
	return CookiesLoaded, nil
}

// SaveCookies serializes the browser's current cookie set to the jar,
// overwriting any prior content.
func (s *Session) SaveCookies() error {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return fmt.Errorf("browser: get cookies: %w", err)
	}
	if err := s.jar.Save(cookies); err != nil {
		return err
	}
	s.cfg.Logger.Info("session: cookies saved", "path", s.jar.Path(), "count", len(cookies))
	return nil
}

// IsLoggedIn navigates to the platform home and probes the authenticated-only
// anchors, each with its own timeout. The presence of a login form is logged
// as a secondary diagnostic but never decides the outcome.
func (s *Session) IsLoggedIn(ctx context.Context) (bool, error) {
	page, err := s.Page()
	if err != nil {
		return false, err
	}
	if err := page.Context(ctx).Navigate(homeURL); err != nil {
		return false, fmt.Errorf("browser: navigate %s: %w", homeURL, err)
	}
	page.Context(ctx).WaitLoad()

	for _, a := range loggedInAnchors {
		if s.anchorPresent(ctx, page, a, s.cfg.AnchorTimeout) {
			s.cfg.Logger.Info("session: active", "anchor", a.css+a.xpath)
			return true, nil
		}
	}

	if has, _, _ := page.Has("#email"); has {
		s.cfg.Logger.Info("session: login form present, no active session")
	}
	return false, nil
}

// PerformLogin fills the credential form, submits, and waits out manual
// verification (captcha/challenge) by polling for authenticated anchors up
// to the configured ceiling. Cookies are persisted immediately on success.
func (s *Session) PerformLogin(ctx context.Context) error {
	log := s.cfg.Logger
	page, err := s.Page()
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Navigate(homeURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", homeURL, err)
	}
	page.Context(ctx).WaitLoad()

	// Consent banner, when shown.
	if el, err := page.Timeout(5 * time.Second).ElementX(`//button[contains(@title, "Allow")]`); err == nil {
		el.Click(proto.InputMouseButtonLeft, 1)
		log.Info("session: consent banner accepted")
	}

	if err := s.fillWithRetry(ctx, page, "#email", s.cfg.Email); err != nil {
		return fmt.Errorf("browser: email field: %w", err)
	}
	if err := s.fillWithRetry(ctx, page, "#pass", s.cfg.Password); err != nil {
		return fmt.Errorf("browser: password field: %w", err)
	}
	if err := s.clickWithRetry(ctx, page, `button[name="login"]`); err != nil {
		return fmt.Errorf("browser: login button: %w", err)
	}

	log.Info("session: credentials submitted, waiting for verification",
		"ceiling", s.cfg.LoginWaitCeiling)

	deadline := time.Now().Add(s.cfg.LoginWaitCeiling)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.LoginPollInterval):
		}

		for _, a := range loginPollAnchors {
			if has, _, _ := page.Has(a.css); has {
				log.Info("session: login successful")
				if err := s.SaveCookies(); err != nil {
					log.Warn("session: cookie save after login failed", "error", err)
				}
				return nil
			}
		}
		log.Info("session: still waiting for verification",
			"remaining", time.Until(deadline).Round(time.Second))
	}

	return fmt.Errorf("browser: login not completed within %s", s.cfg.LoginWaitCeiling)
}

// Authenticate produces an authenticated session: cookie restore first,
// interactive login as the fallback. Fatal when credentials are absent and
// the cookies did not verify.
func (s *Session) Authenticate(ctx context.Context) error {
	res, err := s.LoadCookies(ctx)
	if err != nil {
		s.cfg.Logger.Warn("session: cookie load failed", "error", err)
	}
	if res == CookiesLoaded {
		page, perr := s.Page()
		if perr != nil {
			return perr
		}
		page.Context(ctx).Reload()
		ok, lerr := s.IsLoggedIn(ctx)
		if lerr != nil {
			return lerr
		}
		if ok {
			s.cfg.Logger.Info("session: authenticated via persisted cookies")
			return nil
		}
		s.cfg.Logger.Info("session: persisted cookies expired, login required")
	}

	if s.cfg.Email == "" || s.cfg.Password == "" {
		return fmt.Errorf("browser: credentials not configured and no valid cookies")
	}
	return s.PerformLogin(ctx)
}

// OpenTab opens a fresh stealth tab navigated to url, with heavy media
// resources blocked for scraping throughput.
func (s *Session) OpenTab(ctx context.Context, url string) (*rod.Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	blockHeavyResources(page)

	if err := page.Context(ctx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("session: tab load wait", "url", url, "error", err)
	}
	return page, nil
}

// anchorPresent waits for one anchor within its individual timeout.
func (s *Session) anchorPresent(ctx context.Context, page *rod.Page, a anchor, timeout time.Duration) bool {
	p := page.Context(ctx).Timeout(timeout)
	if a.xpath != "" {
		_, err := p.ElementX(a.xpath)
		return err == nil
	}
	_, err := p.Element(a.css)
	return err == nil
}

// fillWithRetry locates a field and types into it, re-resolving the element
// on every attempt so a re-rendered form never leaves us holding a stale
// handle. 3 attempts, fixed 2s delay.
func (s *Session) fillWithRetry(ctx context.Context, page *rod.Page, sel, value string) error {
	return withRetry(ctx, s.cfg.Logger, sel, func() error {
		el, err := page.Context(ctx).Timeout(30 * time.Second).Element(sel)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(value)
	})
}

func (s *Session) clickWithRetry(ctx context.Context, page *rod.Page, sel string) error {
	return withRetry(ctx, s.cfg.Logger, sel, func() error {
		el, err := page.Context(ctx).Timeout(30 * time.Second).Element(sel)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

const (
	retryAttempts = 3
	retryDelay    = 2 * time.Second
)

func withRetry(ctx context.Context, log *slog.Logger, what string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < retryAttempts {
			log.Info("session: retrying", "target", what, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return err
}

// blockHeavyResources drops media and image requests on a scraping tab.
func blockHeavyResources(page *rod.Page) {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		switch strings.ToLower(string(h.Request.Type())) {
		case "image", "media", "font":
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	go router.Run()
}
