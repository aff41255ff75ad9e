package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/debuglog"
)

const (
	defaultUserAgent = "chronicle/1.0 (https://github.com/pders01/chronicle)"
	defaultTimeout   = 30 * time.Second
	maxBodyBytes     = 16 << 20
)

// TokenSource supplies the bearer token for authenticated requests.
// An empty token means no Authorization header.
type TokenSource interface {
	Token() (string, error)
}

type Client struct {
	base      *url.URL
	userAgent string
	client    *http.Client
	tokens    TokenSource
}

type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	Tokens     TokenSource
	HTTPClient *http.Client
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:      base,
		userAgent: ua,
		client:    hc,
		tokens:    opts.Tokens,
	}, nil
}

// NewClientFromConfig builds a client from the [api] config section.
func NewClientFromConfig(cfg config.APIConfig, tokens TokenSource) (*Client, error) {
	return NewClient(Options{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Tokens:    tokens,
	})
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*Envelope, error) {
	op := method + " " + path

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, tokenErr := c.tokens.Token()
		if tokenErr != nil {
			return nil, fmt.Errorf("reading session token: %w", tokenErr)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := debuglog.WithFields(map[string]interface{}{
		"op":         op,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s: %w", op, context.Canceled)
		}
		log.Warnf("transport failure: %v", err)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warnf("reading body: %v", err)
		return nil, &TransportError{Op: op, Err: err}
	}

	log.Debugf("HTTP %d in %s", resp.StatusCode, time.Since(start))

	var env Envelope
	if decodeErr := json.Unmarshal(raw, &env); decodeErr != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("decoding %s response: %w", op, decodeErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		log.Infof("rejected: HTTP %d: %s", resp.StatusCode, env.Message)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return &env, nil
}

func decodeData[T any](env *Envelope, op string) (T, error) {
	var out T
	if !env.hasData() {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decoding %s data: %w", op, err)
	}
	return out, nil
}

func (c *Client) session(ctx context.Context, path string, body any) (*Session, error) {
	env, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	user, err := decodeData[*User](env, path)
	if err != nil {
		return nil, err
	}
	return &Session{Token: env.Token, User: user, Message: env.Message}, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	return c.session(ctx, "auth/register", req)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	return c.session(ctx, "auth/login", req)
}

func (c *Client) ListArticles(ctx context.Context, opts ListOptions) ([]Article, error) {
	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	env, err := c.do(ctx, http.MethodGet, "articles", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]Article](env, "articles")
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	env, err := c.do(ctx, http.MethodGet, "categories", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]Category](env, "categories")
}

func (c *Client) GetArticle(ctx context.Context, id int) (*Article, error) {
	path := fmt.Sprintf("articles/%d", id)
	env, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	article, err := decodeData[*Article](env, path)
	if err != nil {
		return nil, err
	}
	if article == nil {
		msg := env.Message
		if msg == "" {
			msg = "Article not found"
		}
		return nil, &APIError{StatusCode: http.StatusOK, Message: msg}
	}
	return article, nil
}

func (c *Client) message(ctx context.Context, method, path string, body any) (string, error) {
	env, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) CreateArticle(ctx context.Context, payload ArticlePayload) (string, error) {
	return c.message(ctx, http.MethodPost, "articles", payload)
}

func (c *Client) UpdateArticle(ctx context.Context, id int, payload ArticlePayload) (string, error) {
	return c.message(ctx, http.MethodPut, fmt.Sprintf("articles/%d", id), payload)
}

func (c *Client) DeleteArticle(ctx context.Context, id int) (string, error) {
	return c.message(ctx, http.MethodDelete, fmt.Sprintf("articles/%d", id), nil)
}

func (c *Client) ListUserArticles(ctx context.Context, userID int) ([]Article, error) {
	path := fmt.Sprintf("users/%d/articles", userID)
	env, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]Article](env, path)
}

func (c *Client) GetUser(ctx context.Context, id int) (*User, error) {
	path := fmt.Sprintf("users/%d", id)
	env, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	user, err := decodeData[*User](env, path)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "User not found"}
	}
	return user, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int, update UserUpdate) (string, error) {
	return c.message(ctx, http.MethodPut, fmt.Sprintf("users/%d", id), update)
}

func (c *Client) DeleteUser(ctx context.Context, id int) (string, error) {
	return c.message(ctx, http.MethodDelete, fmt.Sprintf("users/%d", id), nil)
}
