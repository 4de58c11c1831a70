package kavita

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrUpstreamUnavailable covers network failures, failed authentication
	// and unexpected server responses.
	ErrUpstreamUnavailable = errors.New("kavita unavailable")
	// ErrNotFound is returned when Kavita does not know the requested entity.
	ErrNotFound = errors.New("not found in kavita")
)

const (
	DefaultBaseURL    = "http://localhost:5000"
	DefaultPluginName = "ESP32Reader"
	DefaultTimeout    = 30 * time.Second
)

// Config holds connection settings for a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	PluginName string
	Timeout    time.Duration
	// RateLimit caps requests per second to Kavita. Zero disables limiting.
	RateLimit float64
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the Kavita REST API on behalf of the relay. It
// authenticates lazily with the plugin API key and re-authenticates once
// when a request is rejected with 401 (tokens expire and Kavita does not
// say so in advance).
type Client struct {
	baseURL    string
	apiKey     string
	pluginName string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu      sync.RWMutex
	session *Session
}

// New creates a client. No request is made until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Kavita base URL '%s'", cfg.BaseURL)
	}
	if cfg.PluginName == "" {
		cfg.PluginName = DefaultPluginName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pluginName: cfg.PluginName,
		httpClient: httpClient,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit * 2)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c, nil
}

// BaseURL returns the Kavita server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Connected reports whether the client holds a session token.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && c.session.Token != ""
}

// Session returns a copy of the current session, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Authenticate exchanges the API key for a session token.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.authenticate(ctx)
	return err
}

func (c *Client) authenticate(ctx context.Context) (Session, error) {
	if c.apiKey == "" {
		return Session{}, fmt.Errorf("%w: no API key configured", ErrUpstreamUnavailable)
	}

	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	query.Set("pluginName", c.pluginName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/Plugin/authenticate?"+query.Encode(), nil)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create authentication request: %w", err)
	}

	body, status, err := c.send(ctx, req)
	if err != nil {
		return Session{}, err
	}
	if status != http.StatusOK {
		return Session{}, fmt.Errorf("%w: authentication failed with status %d: %s", ErrUpstreamUnavailable, status, truncate(body))
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return Session{}, fmt.Errorf("%w: failed to parse authentication response: %v", ErrUpstreamUnavailable, err)
	}
	if session.Token == "" {
		return Session{}, fmt.Errorf("%w: no token received from authentication", ErrUpstreamUnavailable)
	}

	c.mu.Lock()
	c.session = &session
	c.mu.Unlock()

	c.logger.Info("authenticated with kavita",
		"user", session.Username,
		"version", session.KavitaVersion)
	return session, nil
}

// currentSession returns the cached session, authenticating first when
// there is none. The copy stays valid even if another request drops the
// cached session afterwards.
func (c *Client) currentSession(ctx context.Context) (Session, error) {
	if s, ok := c.Session(); ok {
		return s, nil
	}
	return c.authenticate(ctx)
}

func (c *Client) dropSession(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Token == stale {
		c.session = nil
	}
}

// userKey is the key Kavita wants on image URLs: the one returned with the
// session, falling back to the configured plugin key.
func (c *Client) userKey(s Session) string {
	if s.APIKey != "" {
		return s.APIKey
	}
	return c.apiKey
}

// send performs one request, honouring the rate limiter, and returns the
// body and status. Transport failures map to ErrUpstreamUnavailable.
func (c *Client) send(ctx context.Context, req *http.Request) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s %s: %v", ErrUpstreamUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response from %s: %v", ErrUpstreamUnavailable, req.URL.Path, err)
	}

	return body, resp.StatusCode, nil
}

// do sends an authenticated request and returns the body of a 2xx response.
// 400 and 404 map to ErrNotFound since every id the relay forwards is a
// syntactically valid integer; other failures map to ErrUpstreamUnavailable.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	return c.doSession(ctx, method, path, func(Session) url.Values { return query }, payload)
}

// doSession is do with a query built from the session of each attempt, so
// a retry after re-authentication carries the fresh session's values.
func (c *Client) doSession(ctx context.Context, method, path string, buildQuery func(Session) url.Values, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		session, err := c.currentSession(ctx)
		if err != nil {
			return nil, err
		}
		token := session.Token

		target := c.baseURL + path
		if query := buildQuery(session); len(query) > 0 {
			target += "?" + query.Encode()
		}

		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		body, status, err := c.send(ctx, req)
		if err != nil {
			return nil, err
		}

		switch {
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusUnauthorized && attempt == 0:
			c.logger.Debug("kavita session rejected, re-authenticating", "path", path)
			c.dropSession(token)
			continue
		case status == http.StatusNotFound || status == http.StatusBadRequest:
			return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrNotFound, method, path, status, truncate(body))
		default:
			return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstreamUnavailable, method, path, status, truncate(body))
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse %s response: %v", ErrUpstreamUnavailable, path, err)
	}
	return nil
}

// Libraries lists every library visible to the plugin user.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var libraries []Library
	if err := c.getJSON(ctx, "/api/Library/libraries", nil, &libraries); err != nil {
		return nil, err
	}
	return libraries, nil
}

// Series lists the series of a library, sorted by name.
func (c *Client) Series(ctx context.Context, libraryID int) ([]Series, error) {
	filter := seriesFilter{
		Statements:  []filterStatement{{Field: 19, Value: strconv.Itoa(libraryID), Comparison: 0}},
		Combination: 1,
		LimitTo:     0,
		SortOptions: sortOptions{SortField: 1, IsAscending: true},
	}

	body, err := c.do(ctx, http.MethodPost, "/api/Series/v2", nil, filter)
	if err != nil {
		return nil, err
	}

	var series []Series
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("%w: failed to parse series response: %v", ErrUpstreamUnavailable, err)
	}
	return series, nil
}

// Volumes lists the volumes of a series together with their chapters.
func (c *Client) Volumes(ctx context.Context, seriesID int) ([]Volume, error) {
	query := url.Values{}
	query.Set("seriesId", strconv.Itoa(seriesID))

	var volumes []Volume
	if err := c.getJSON(ctx, "/api/Series/volumes", query, &volumes); err != nil {
		return nil, err
	}
	return volumes, nil
}

// Chapters flattens the chapters of every volume in a series, in volume
// order.
func (c *Client) Chapters(ctx context.Context, seriesID int) ([]Chapter, error) {
	volumes, err := c.Volumes(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	var chapters []Chapter
	for _, v := range volumes {
		for _, ch := range v.Chapters {
			if ch.VolumeID == 0 {
				ch.VolumeID = v.ID
			}
			chapters = append(chapters, ch)
		}
	}
	return chapters, nil
}

// ChapterInfo returns reader metadata for a chapter.
func (c *Client) ChapterInfo(ctx context.Context, chapterID int) (ChapterInfo, error) {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(chapterID))

	var info ChapterInfo
	if err := c.getJSON(ctx, "/api/Reader/chapter-info", query, &info); err != nil {
		return ChapterInfo{}, err
	}
	return info, nil
}

// BookPage returns the HTML of one page of a book chapter.
func (c *Client) BookPage(ctx context.Context, chapterID, page int) (string, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/Book/%d/book-page", chapterID), query, nil)
	if err != nil {
		return "", err
	}

	// Some Kavita versions wrap the HTML in a JSON string.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var html string
		if err := json.Unmarshal(trimmed, &html); err == nil {
			return html, nil
		}
	}
	return string(body), nil
}

// PageImage downloads one page image of an image-based chapter. The image
// endpoint authenticates by query key (the user key from the session, not
// the plugin key).
func (c *Client) PageImage(ctx context.Context, chapterID, page int) ([]byte, error) {
	return c.doSession(ctx, http.MethodGet, "/api/Reader/image", func(s Session) url.Values {
		query := url.Values{}
		query.Set("chapterId", strconv.Itoa(chapterID))
		query.Set("page", strconv.Itoa(page))
		query.Set("apiKey", c.userKey(s))
		query.Set("extractPdf", "false")
		return query
	}, nil)
}

// Progress returns the stored reading position for a chapter.
func (c *Client) Progress(ctx context.Context, chapterID int) (Progress, error) {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(chapterID))

	body, err := c.do(ctx, http.MethodGet, "/api/Reader/get-progress", query, nil)
	if err != nil {
		return Progress{}, err
	}

	// Kavita answers 204 with no body when nothing was saved yet.
	progress := Progress{ChapterID: chapterID}
	if len(bytes.TrimSpace(body)) == 0 {
		return progress, nil
	}
	if err := json.Unmarshal(body, &progress); err != nil {
		return Progress{}, fmt.Errorf("%w: failed to parse progress response: %v", ErrUpstreamUnavailable, err)
	}
	return progress, nil
}

// SaveProgress stores a reading position.
func (c *Client) SaveProgress(ctx context.Context, p Progress) error {
	_, err := c.do(ctx, http.MethodPost, "/api/Reader/progress", nil, p)
	return err
}

// MarkRead marks every page of a chapter as read.
func (c *Client) MarkRead(ctx context.Context, chapterID int) error {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(chapterID))

	_, err := c.do(ctx, http.MethodPost, "/api/Reader/mark-read", query, nil)
	return err
}

func truncate(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
