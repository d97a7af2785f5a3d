// Package backend wraps the remote banking REST API consumed by the front end.
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
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 64 << 10

// Client performs authenticated calls against the banking API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with an instrumented transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewClientWithHTTP(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewClientWithHTTP constructs a client around an existing http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// enveloped reports whether responses for path wrap their payload in a
// {"data": ...} envelope.
func enveloped(path string) bool {
	return strings.HasPrefix(path, "/admin/")
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) getJSON(ctx context.Context, path, token string, query url.Values, out any) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, path, token, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path, token string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, token, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	resp, err := c.send(ctx, method, path, token, acceptJSON, in)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp.Body, pathOnly(path), out)
}

// Accept values for send.
const (
	acceptJSON = "application/json"
	acceptAny  = "*/*"
)

// send issues the request and returns the response when the status is 2xx.
// The caller owns the body.
func (c *Client) send(ctx context.Context, method, path, token, accept string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, &SetupError{Path: path, Err: err}
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &SetupError{Path: path, Err: err}
	}
	req.Header.Set("Accept", accept)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			_ = resp.Body.Close()
		}()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       raw,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp, nil
}

func decodeBody(r io.Reader, path string, out any) error {
	if !enveloped(path) {
		if err := json.NewDecoder(r).Decode(out); err != nil {
			return fmt.Errorf("backend: decode %s: %w", path, err)
		}
		return nil
	}
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("backend: decode %s envelope: %w", path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("backend: %s: %w", path, ErrEmptyEnvelope)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("backend: decode %s data: %w", path, err)
	}
	return nil
}

func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func escape(id string) string {
	return url.PathEscape(id)
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
