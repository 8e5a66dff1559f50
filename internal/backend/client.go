package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	appLog "medcal/internal/log"
	"medcal/internal/model"
)

const defaultTimeout = 15 * time.Second

// Session is the authenticated state: the bearer token and the profile
// it belongs to.
type Session struct {
	Token *oauth2.Token
	User  model.User
}

// Client talks to the medication backend. It is safe for concurrent use.
type Client struct {
	base  *url.URL
	httpc *http.Client
	oauth *oauth2.Config

	mu      sync.RWMutex
	session *Session

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

// cacheEntry remembers the last successful body for a conditional GET.
type cacheEntry struct {
	ETag string
	Body []byte
}

type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpc = hc
	}
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend: base URL is empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base:  u,
		httpc: &http.Client{Timeout: defaultTimeout},
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.oauth = &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.endpoint("/auth/jwt/login"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// Session returns a copy of the current session, or nil when logged out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Logout forgets the session and any cached responses.
func (c *Client) Logout() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	c.cacheMu.Lock()
	c.cache = make(map[string]cacheEntry)
	c.cacheMu.Unlock()
}

// Login performs the password grant against /auth/jwt/login and loads the
// user's profile.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpc)
	tok, err := c.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			status := rerr.Response.StatusCode
			if status == http.StatusBadRequest || status == http.StatusUnauthorized {
				return nil, &FetchError{Op: "login", Status: status, Err: ErrBadCredentials}
			}
			return nil, &FetchError{Op: "login", Status: status, Err: err}
		}
		return nil, &FetchError{Op: "login", Err: err}
	}
	if exp, ok := accessTokenExpiry(tok.AccessToken); ok {
		tok.Expiry = exp
	}

	sess := &Session{Token: tok}
	if err := c.getJSON(ctx, "me", tok, "/users/me", &sess.User); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	appLog.Info("backend login ok", "user_id", sess.User.ID, "expires", tok.Expiry.Format(time.RFC3339))
	s := *sess
	return &s, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, u model.UserCreate) (*model.User, error) {
	var out model.User
	if err := c.sendJSON(ctx, "register", nil, http.MethodPost, "/auth/register", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me reloads the profile of the logged-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	tok, err := c.token()
	if err != nil {
		return nil, &FetchError{Op: "me", Err: err}
	}
	var u model.User
	if err := c.getJSON(ctx, "me", tok, "/users/me", &u); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.User = u
	}
	c.mu.Unlock()
	return &u, nil
}

// Courses fetches the user's course records. Repeated calls send the last
// ETag and reuse the previous body on 304.
func (c *Client) Courses(ctx context.Context, userID model.ID) ([]model.CourseRecord, error) {
	tok, err := c.token()
	if err != nil {
		return nil, &FetchError{Op: "courses", Err: err}
	}
	path := "/schedules/user/" + url.PathEscape(string(userID))

	body, err := c.conditionalGet(ctx, "courses", tok, path)
	if err != nil {
		return nil, err
	}

	var recs []model.CourseRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, &FetchError{Op: "courses", Status: http.StatusOK, Err: fmt.Errorf("decode: %w", err)}
	}
	if recs == nil {
		recs = []model.CourseRecord{}
	}
	return recs, nil
}

// CreateCourse submits a validated course.
func (c *Client) CreateCourse(ctx context.Context, p model.CoursePayload) (*model.CourseRecord, error) {
	tok, err := c.token()
	if err != nil {
		return nil, &SubmissionError{Op: "create course", Err: err}
	}
	var out model.CourseRecord
	if err := c.sendJSON(ctx, "create course", tok, http.MethodPost, "/schedules", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Drugs(ctx context.Context) ([]model.Drug, error) {
	tok, err := c.token()
	if err != nil {
		return nil, &FetchError{Op: "drugs", Err: err}
	}
	var drugs []model.Drug
	if err := c.getJSON(ctx, "drugs", tok, "/drugs", &drugs); err != nil {
		return nil, err
	}
	if drugs == nil {
		drugs = []model.Drug{}
	}
	return drugs, nil
}

func (c *Client) CreateDrug(ctx context.Context, in model.DrugInput) (*model.Drug, error) {
	tok, err := c.token()
	if err != nil {
		return nil, &SubmissionError{Op: "create drug", Err: err}
	}
	var out model.Drug
	if err := c.sendJSON(ctx, "create drug", tok, http.MethodPost, "/drugs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDrug(ctx context.Context, id model.ID, in model.DrugInput) (*model.Drug, error) {
	tok, err := c.token()
	if err != nil {
		return nil, &SubmissionError{Op: "update drug", Err: err}
	}
	var out model.Drug
	if err := c.sendJSON(ctx, "update drug", tok, http.MethodPut, "/drugs/"+url.PathEscape(string(id)), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDrug(ctx context.Context, id model.ID) error {
	tok, err := c.token()
	if err != nil {
		return &SubmissionError{Op: "delete drug", Err: err}
	}
	return c.sendJSON(ctx, "delete drug", tok, http.MethodDelete, "/drugs/"+url.PathEscape(string(id)), nil, nil)
}

func (c *Client) token() (*oauth2.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.Token == nil {
		return nil, ErrNotAuthenticated
	}
	if !c.session.Token.Valid() {
		return nil, ErrSessionExpired
	}
	return c.session.Token, nil
}

// authed returns a client that attaches tok as a bearer header. A nil
// token yields the plain client.
func (c *Client) authed(tok *oauth2.Token) *http.Client {
	if tok == nil {
		return c.httpc
	}
	return &http.Client{
		Timeout: c.httpc.Timeout,
		Transport: &oauth2.Transport{
			Base:   c.httpc.Transport,
			Source: oauth2.StaticTokenSource(tok),
		},
	}
}

func (c *Client) getJSON(ctx context.Context, op string, tok *oauth2.Token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.authed(tok).Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: errors.New(readDetail(resp.Body, resp.Status))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (c *Client) conditionalGet(ctx context.Context, op string, tok *oauth2.Token, path string) ([]byte, error) {
	u := c.endpoint(path)

	c.cacheMu.Lock()
	cached, hasCached := c.cache[u]
	c.cacheMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if hasCached && cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	resp, err := c.authed(tok).Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if !hasCached {
			return nil, &FetchError{Op: op, Status: resp.StatusCode, Err: errors.New("304 Not Modified without a cached body")}
		}
		appLog.Debug("backend fetch not modified", "op", op, "path", path)
		return cached.Body, nil

	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{Op: op, Status: resp.StatusCode, Err: err}
		}
		if etag := resp.Header.Get("ETag"); etag != "" {
			c.cacheMu.Lock()
			c.cache[u] = cacheEntry{ETag: etag, Body: body}
			c.cacheMu.Unlock()
		}
		return body, nil

	default:
		return nil, &FetchError{Op: op, Status: resp.StatusCode, Err: errors.New(readDetail(resp.Body, resp.Status))}
	}
}

// sendJSON performs a write. in may be nil for bodyless requests and out
// may be nil when the response body is not needed.
func (c *Client) sendJSON(ctx context.Context, op string, tok *oauth2.Token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &SubmissionError{Op: op, Err: fmt.Errorf("encode: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return &SubmissionError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.authed(tok).Do(req)
	if err != nil {
		return &SubmissionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readDetail(resp.Body, resp.Status)
		appLog.Warn("backend rejected write", "op", op, "status", resp.StatusCode, "detail", detail)
		return &SubmissionError{Op: op, Status: resp.StatusCode, Detail: detail}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &SubmissionError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// readDetail extracts FastAPI's {"detail": ...} message, falling back to
// the raw body and then to fallback.
func readDetail(r io.Reader, fallback string) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &env); err == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return s
		}
		return string(env.Detail)
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return fallback
}
