package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
)

const (
	DefaultTimeout = 30 * time.Second
	// maxBodyLog is the number of body bytes written to debug logs.
	maxBodyLog = 512
)

// Client is the authenticated handle of a single connection.
// Requests are serialized: only one request is in flight at a time.
type Client struct {
	baseURL    string
	http       *http.Client
	auth       Authenticator
	headers    http.Header
	pathParams map[string]string
	timeout    time.Duration
	log        logrus.FieldLogger
	sleep      func(context.Context, time.Duration) error

	mu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithAuth(auth Authenticator) Option {
	return func(cl *Client) {
		cl.auth = auth
	}
}

// WithTimeout bounds every single REST call.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(cl *Client) {
		cl.log = log
	}
}

// WithHeader adds a static header to every request. Empty values are skipped.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		if value != "" {
			cl.headers.Set(key, value)
		}
	}
}

// WithPathParams sets default values for path templates.
func WithPathParams(params map[string]string) Option {
	return func(cl *Client) {
		for k, v := range params {
			cl.pathParams[k] = v
		}
	}
}

// WithSleepFunc replaces the function used to wait for Retry-After delays.
func WithSleepFunc(fn func(context.Context, time.Duration) error) Option {
	return func(cl *Client) {
		cl.sleep = fn
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{},
		auth:       NoAuth{},
		headers:    make(http.Header),
		pathParams: make(map[string]string),
		timeout:    DefaultTimeout,
		log:        logrus.StandardLogger(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// PathParam returns the default value of a path template parameter.
func (c *Client) PathParam(name string) string {
	return c.pathParams[name]
}

// Request describes a single REST call.
type Request struct {
	// Op names the call in errors and logs.
	Op     string
	Method string
	// Path is relative to the base url and may contain {name} placeholders.
	Path       string
	PathParams map[string]string
	Query      url.Values
	Body       any
	// Retry allows a single retry of an idempotent read.
	Retry bool
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the json body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &core.Error{
			Kind:       core.ErrRemote,
			Op:         "decode response",
			StatusCode: r.StatusCode,
			Body:       r.Body,
			Err:        err,
		}
	}
	return nil
}

// RetryAfter returns the delay requested by the server (0 if none).
func (r *Response) RetryAfter() time.Duration {
	d, _ := ParseRetryAfter(r.Header.Get("Retry-After"), time.Now())
	return d
}

// Do executes the request. Non-2xx responses are returned as *core.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.auth.Prepare(ctx, c); err != nil {
		return nil, err
	}

	return c.do(ctx, req, true)
}

// Sleep waits for d or until ctx is done.
func (c *Client) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.sleep(ctx, d)
}

// do runs the request with at most one retry. Caller holds the lock.
func (c *Client) do(ctx context.Context, req *Request, authenticate bool) (*Response, error) {
	op := req.Op
	if op == "" {
		op = req.Method + " " + req.Path
	}

	target, err := c.url(req)
	if err != nil {
		return nil, core.NewError(core.ErrConfiguration, op, err)
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewError(core.ErrValidation, op, fmt.Errorf("json.Marshal: %w", err))
		}
	}

	attempts := 1
	if req.Retry {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.send(ctx, req.Method, target, body, authenticate)
		if err != nil {
			lastErr = core.NewError(core.ErrNetwork, op, err)
			if ctx.Err() != nil || !isTransient(err) {
				return nil, lastErr
			}
			c.log.WithError(err).WithField("op", op).Warn("transient network failure")
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		lastErr = statusError(op, resp)

		// rate limited reads wait for the server and use up the retry
		if resp.StatusCode == http.StatusTooManyRequests && attempt < attempts {
			if d := resp.RetryAfter(); d > 0 {
				c.log.WithFields(logrus.Fields{"op": op, "delay": d}).Info("rate limited, waiting")
				if err := c.Sleep(ctx, d); err != nil {
					return nil, core.NewError(core.ErrNetwork, op, err)
				}
				continue
			}
		}

		return nil, lastErr
	}

	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, target string, body []byte, authenticate bool) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header[k] = v
	}
	if authenticate {
		c.auth.Apply(httpReq)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// the whole body is read under the timeout, no partial pages escape
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":  method,
		"url":     Mask(target),
		"status":  resp.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("request done")

	if resp.StatusCode >= 400 {
		c.log.WithField("body", Mask(truncate(string(data), maxBodyLog))).Debug("error response")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) url(req *Request) (string, error) {
	path, err := RenderPath(req.Path, req.PathParams, c.pathParams)
	if err != nil {
		return "", err
	}

	target := c.baseURL
	if path != "" {
		target += "/" + strings.TrimLeft(path, "/")
	}
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	return target, nil
}

// RenderPath replaces {name} placeholders with escaped values. Values in
// params take precedence over defaults. A missing or empty value is an error.
func RenderPath(tmpl string, params, defaults map[string]string) (string, error) {
	var sb strings.Builder
	rest := tmpl
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in path %q", tmpl)
		}
		end += start

		name := rest[start+1 : end]
		value, ok := params[name]
		if !ok {
			value = defaults[name]
		}
		if value == "" {
			return "", fmt.Errorf("missing value for path parameter %q", name)
		}

		sb.WriteString(rest[:start])
		sb.WriteString(url.PathEscape(value))
		rest = rest[end+1:]
	}

	return sb.String(), nil
}

func statusError(op string, resp *Response) error {
	kind := core.ErrRemote
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = core.ErrAuthentication
	}

	return &core.Error{
		Kind:       kind,
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
