// Package api is the HTTP client for the hosting platform.
//
// The client never retries. It returns raw JSON records for internal/models
// to parse and classifies failures as ErrUnauthorized, ErrNotFound or
// ErrTransport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"

	"github.com/go-ports/terminus/internal/buildinfo"
	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/redaction"
)

// Client talks to the hosting platform API on behalf of one session.
type Client struct {
	baseURL  string
	token    string
	userID   string
	pageSize int
	http     *http.Client
}

// New returns a Client for cfg. A nil httpClient gets one bounded by
// cfg.Timeout.
func New(cfg config.APIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		userID:   cfg.UserID,
		pageSize: pageSize,
		http:     httpClient,
	}
}

// UserID returns the session user's ID.
func (c *Client) UserID() string { return c.userID }

// PageSize returns the number of records requested per listing page.
func (c *Client) PageSize() int { return c.pageSize }

// Listing fetches one page of records from path. page is zero based.
// Bare array responses are complete; object responses report has_more.
func (c *Client) Listing(ctx context.Context, path string, page int) ([]json.RawMessage, bool, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("start", strconv.Itoa(page*c.pageSize))

	raw, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, false, &RemoteFetchError{Path: path, Err: err}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, false, &RemoteFetchError{Path: path, Err: fmt.Errorf("%w: decode listing: %w", ErrTransport, err)}
		}
		return records, false, nil
	}

	var paged struct {
		Data    *[]json.RawMessage `json:"data"`
		HasMore bool               `json:"has_more"`
	}
	if err := json.Unmarshal(trimmed, &paged); err != nil {
		return nil, false, &RemoteFetchError{Path: path, Err: fmt.Errorf("%w: decode listing: %w", ErrTransport, err)}
	}
	if paged.Data == nil {
		return nil, false, &RemoteFetchError{Path: path, Err: fmt.Errorf("%w: listing envelope has no data", ErrTransport)}
	}
	return *paged.Data, paged.HasMore, nil
}

// Get fetches path and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	raw, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return &RemoteFetchError{Path: path, Err: err}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteFetchError{Path: path, Err: fmt.Errorf("%w: decode: %w", ErrTransport, err)}
	}
	return nil
}

// Mutate posts payload to path and returns the raw workflow handle the
// platform responds with.
func (c *Client) Mutate(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return nil, &RemoteMutationError{Path: path, Err: err}
	}
	return raw, nil
}

// WorkflowStatus fetches the current state of the workflow at path.
func (c *Client) WorkflowStatus(ctx context.Context, path string) (json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, &RemoteFetchError{Path: path, Err: err}
	}
	return raw, nil
}

// do executes one request, marshalling body as JSON, and returns the raw
// response body. Non-2xx status codes are classified into the package's
// failure sentinels.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %w", ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logger := ctxlog.From(ctx)
	resp, err := c.http.Do(req) // #nosec G107 -- URL is the user-configured platform endpoint
	if err != nil {
		logger.Debug("api request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		detail := redaction.Redact(string(bytes.TrimSpace(snippet)), c.token)
		return nil, fmt.Errorf("%w: HTTP %d: %s", classify(resp.StatusCode), resp.StatusCode, detail)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	return raw, nil
}

func classify(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransport
	}
}
