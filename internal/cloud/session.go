package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vantrack/vantrack-core/internal/infrastructure/config"
)

// Logger is the minimal logging interface the cloud client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}

// Session is one authenticated connection to the telematics cloud. The
// cloud tracks identity with a session cookie, so the session owns a
// cookie jar and the HTTP client wired to it.
//
// All methods are safe for concurrent use. Authenticate and
// RestoreCookies swap in a complete new client with a fresh jar under the
// lock, so a re-login never mixes fresh and stale cookies and never
// mutates a client an in-flight request is using; requests already
// running finish on the client they started with.
type Session struct {
	cfg     config.CloudConfig
	baseURL *url.URL
	timeout time.Duration
	log     Logger

	mu     sync.Mutex
	client *http.Client
	jar    *cookiejar.Jar
}

// NewSession creates an unauthenticated session against the configured
// cloud endpoint.
func NewSession(cfg *config.Config, log Logger) (*Session, error) {
	if log == nil {
		log = noopLogger{}
	}

	base, err := url.Parse(cfg.Cloud.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("cloud: invalid base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cloud: create cookie jar: %w", err)
	}

	return &Session{
		cfg:     cfg.Cloud,
		baseURL: base,
		timeout: cfg.RequestTimeout(),
		log:     log,
		jar:     jar,
		client: &http.Client{
			Jar:     jar,
			Timeout: cfg.RequestTimeout(),
		},
	}, nil
}

// swapJar installs a new jar behind a new client. Callers hold no lock.
func (s *Session) swapJar(jar *cookiejar.Jar) {
	s.mu.Lock()
	s.jar = jar
	s.client = &http.Client{
		Jar:     jar,
		Timeout: s.timeout,
	}
	s.mu.Unlock()
}

// Authenticate logs in with the configured credentials. Any cookies from
// a previous login are discarded first, so the jar never carries a mix of
// old and new session state.
func (s *Session) Authenticate(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cloud: create cookie jar: %w", err)
	}
	s.swapJar(jar)

	form := url.Values{}
	form.Set("login", s.cfg.Username)
	form.Set("password", s.cfg.Password)

	if err := s.do(ctx, http.MethodPost, "/auth/login", nil, form, &envelope{}); err != nil {
		return err
	}

	s.log.Info("authenticated with cloud", "username", s.cfg.Username)
	return nil
}

// ExportCookies serializes the current session cookies for caching.
func (s *Session) ExportCookies() ([]byte, error) {
	s.mu.Lock()
	cookies := s.jar.Cookies(s.baseURL)
	s.mu.Unlock()

	data, err := json.Marshal(cookies)
	if err != nil {
		return nil, fmt.Errorf("cloud: encode cookies: %w", err)
	}
	return data, nil
}

// RestoreCookies loads previously exported cookies into a fresh jar. The
// restored session may still turn out to be expired; the first request
// surfaces that as ErrAuthFailed.
func (s *Session) RestoreCookies(data []byte) error {
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("cloud: decode cookies: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cloud: create cookie jar: %w", err)
	}
	jar.SetCookies(s.baseURL, cookies)
	s.swapJar(jar)
	return nil
}

// Close releases idle connections. The session is unusable afterwards
// only by convention; there is no server-side logout.
func (s *Session) Close() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	client.CloseIdleConnections()
}

// do performs one request and decodes the body into out, which must embed
// envelope (pass &envelope{} when only the status matters). Every failure
// mode is folded into the auth/transport taxonomy:
//
//   - network and body errors wrap ErrTransport
//   - HTTP 401/403 and application code 401 wrap ErrAuthFailed
//   - any other non-200 HTTP status or application code wraps ErrTransport
func (s *Session) do(ctx context.Context, method, path string, query url.Values, form url.Values, out any) error {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s: http %d", ErrAuthFailed, method, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s %s: http %d", ErrTransport, method, path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrTransport, err)
	}

	env := extractEnvelope(out)
	switch {
	case env == nil:
		return fmt.Errorf("%w: response without status envelope", ErrTransport)
	case env.Code == apiStatusUnauthorized:
		return fmt.Errorf("%w: api code %d: %s", ErrAuthFailed, env.Code, env.Desc)
	case env.Code != apiStatusOK:
		return fmt.Errorf("%w: api code %d: %s", ErrTransport, env.Code, env.Desc)
	}
	return nil
}

// extractEnvelope pulls the shared status envelope out of a decoded
// response body.
func extractEnvelope(out any) *envelope {
	switch v := out.(type) {
	case *envelope:
		return v
	case *devicesResponse:
		return &v.envelope
	case *updatesResponse:
		return &v.envelope
	case *commandResponse:
		return &v.envelope
	default:
		return nil
	}
}
