// Package auth maintains an authenticated session against the shop's
// Laravel backend. The session cookies double as credentials for the
// search API, so everything that talks to the shop goes through here.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/telemetry"
	"vitasana-backend/lib/timezone"
)

var tracer = otel.Tracer("services/auth")

var ErrLoginFailed = fmt.Errorf("login failed: expected session cookies were not set")

// ErrUnauthorized means the shop rejected our credentials or session
// mid-request. Callers treat it as a signal to refresh the session
// rather than as a transient failure.
var ErrUnauthorized = fmt.Errorf("request rejected: session is no longer authorized")

const (
	sessionCookie = "laravel_session"
	xsrfCookie    = "XSRF-TOKEN"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type Credential struct {
	Email    string
	Password string
}

// SessionConfig is everything a request needs to act as the logged-in
// user.
type SessionConfig struct {
	// Cookies holds the raw cookie values, keyed by name.
	Cookies map[string]string
	// XsrfToken is the url-decoded XSRF-TOKEN cookie, sent back in
	// the X-XSRF-TOKEN header.
	XsrfToken string
}

// Apply attaches the session to an outgoing request.
func (c SessionConfig) Apply(req *resty.Request) *resty.Request {
	for name, value := range c.Cookies {
		req.SetCookie(&http.Cookie{Name: name, Value: value})
	}
	if c.XsrfToken != "" {
		req.SetHeader("X-XSRF-TOKEN", c.XsrfToken)
	}
	return req
}

type Options struct {
	BaseUrl    string
	Credential Credential
	// StatePath persists cookies between runs. Empty disables
	// persistence.
	StatePath string
}

type Session struct {
	baseUrl    *url.URL
	credential Credential
	statePath  string
	http       *resty.Client

	mu     sync.Mutex
	cached *SessionConfig
}

func NewSession(opts Options) (*Session, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "services/auth/http")

	return &Session{
		baseUrl:    baseUrl,
		credential: opts.Credential,
		statePath:  opts.StatePath,
		http:       client,
	}, nil
}

// GetSessionConfig returns a usable session, in order of preference:
// the in-memory cache, cookies persisted from a previous run, or a
// fresh login.
func (s *Session) GetSessionConfig(ctx context.Context) (SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	if state, err := readState(s.statePath); err == nil && state != nil {
		config, err := configFromCookies(state.Cookies)
		if err == nil {
			slog.DebugContext(ctx, "restored session from state file", "saved_at", state.SavedAt)
			s.cached = &config
			return config, nil
		}
		slog.WarnContext(ctx, "persisted session state unusable, logging in", "err", err)
	}

	return s.loginLocked(ctx)
}

// RefreshCookies drops the current session and logs in again. Called
// by the scheduler before every scan so cookies never go stale mid
// enumeration.
func (s *Session) RefreshCookies(ctx context.Context) (SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	return s.loginLocked(ctx)
}

// Invalidate forgets the cached session so the next caller logs in
// again. Used when a request comes back 401/403. The persisted state
// goes too, those are the cookies that just got rejected.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	if s.statePath != "" {
		if err := os.Remove(s.statePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove session state", "path", s.statePath, "err", err)
		}
	}
}

func (s *Session) loginLocked(ctx context.Context) (SessionConfig, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		Get("/login")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return SessionConfig{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page")
		return SessionConfig{}, err
	}

	csrfToken := doc.Find("input[name=_token]").AttrOr("value", "")
	if csrfToken == "" {
		span.SetStatus(codes.Error, "failed to find csrf token")
		return SessionConfig{}, fmt.Errorf("could not find csrf token on login page")
	}

	res, err = s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_token":   csrfToken,
			"email":    s.credential.Email,
			"password": s.credential.Password,
		}).
		Post("/login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return SessionConfig{}, err
	}

	cookies := map[string]string{}
	for _, cookie := range res.Cookies() {
		cookies[cookie.Name] = cookie.Value
	}
	config, err := configFromCookies(cookies)
	if err != nil {
		span.SetStatus(codes.Error, "login did not produce a session")
		return SessionConfig{}, err
	}

	s.cached = &config
	if s.statePath != "" {
		err = writeState(s.statePath, State{
			Cookies: cookies,
			SavedAt: timezone.Now().Format(time.RFC3339),
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to persist session state", "path", s.statePath, "err", err)
		}
	}

	slog.InfoContext(ctx, "logged in", "base_url", s.baseUrl.String())
	return config, nil
}

func configFromCookies(cookies map[string]string) (SessionConfig, error) {
	if cookies[sessionCookie] == "" || cookies[xsrfCookie] == "" {
		return SessionConfig{}, ErrLoginFailed
	}
	// laravel url-encodes the token it puts in the cookie, but the
	// X-XSRF-TOKEN header wants the decoded form
	token, err := url.QueryUnescape(cookies[xsrfCookie])
	if err != nil {
		return SessionConfig{}, fmt.Errorf("decode xsrf token: %w", err)
	}
	return SessionConfig{
		Cookies:   cookies,
		XsrfToken: token,
	}, nil
}
