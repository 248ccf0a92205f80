// Package campusclient is a typed client for the reviewer API. Every
// response is validated before it is handed to callers.
package campusclient

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

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrMalformedResponse is returned when a response body does not match
	// the expected shape.
	ErrMalformedResponse = errors.New("campusclient: malformed response")
	// ErrIssuanceFailed is returned by Approve when the certificate was
	// verified but no credential could be issued.
	ErrIssuanceFailed = errors.New("campusclient: certificate verified but credential issuance failed")
)

// APIError is a problem+json error returned by the server.
type APIError struct {
	Status int               `json:"status"`
	Title  string            `json:"title"`
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("campusclient: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("campusclient: %d %s", e.Status, e.Title)
}

// Client talks to the CampusSync API.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	validate *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New builds a Client for baseURL, e.g. https://campus.example.edu.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPending fetches one page of certificates awaiting review.
func (c *Client) ListPending(ctx context.Context, page, perPage int) (PendingPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	var out PendingPage
	path := "/api/certificates/pending"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return PendingPage{}, err
	}
	if out.Items == nil {
		out.Items = []Certificate{}
	}
	return out, nil
}

// Approve verifies a certificate. When issuance fails the verified
// certificate is returned together with ErrIssuanceFailed.
func (c *Client) Approve(ctx context.Context, id uuid.UUID, notes string) (ReviewResult, error) {
	return c.review(ctx, id, ActionApprove, notes)
}

// Reject rejects a certificate.
func (c *Client) Reject(ctx context.Context, id uuid.UUID, notes string) (ReviewResult, error) {
	return c.review(ctx, id, ActionReject, notes)
}

func (c *Client) review(ctx context.Context, id uuid.UUID, action Action, notes string) (ReviewResult, error) {
	body := map[string]any{"id": id, "action": action, "notes": notes}
	var out ReviewResult
	err := c.do(ctx, http.MethodPost, "/api/certificates/approve", body, nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadGateway && out.Certificate.ID == id {
		return out, fmt.Errorf("%w: %s", ErrIssuanceFailed, out.IssuanceError)
	}
	if err != nil {
		return ReviewResult{}, err
	}
	return out, nil
}

// Batch applies one decision to ids. An empty idempotencyKey sends none.
func (c *Client) Batch(ctx context.Context, ids []uuid.UUID, action Action, notes, idempotencyKey string) (BatchResult, error) {
	body := map[string]any{"ids": ids, "action": action, "notes": notes}
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	var out BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/certificates/batch-approve", body, header, &out); err != nil {
		return BatchResult{}, err
	}
	if len(out.Results) != len(ids) {
		return BatchResult{}, fmt.Errorf("%w: %d results for %d ids", ErrMalformedResponse, len(out.Results), len(ids))
	}
	return out, nil
}

// do sends the request and decodes a 2xx body into out. A 502 body that
// decodes into out is kept so callers can inspect partial state.
func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return c.decode(raw, out)
	}
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	if resp.StatusCode == http.StatusBadGateway && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := c.decode(raw, out); err == nil {
			apiErr.Detail = "partial result"
			return apiErr
		}
	}
	_ = json.Unmarshal(raw, apiErr)
	apiErr.Status = resp.StatusCode
	return apiErr
}

func (c *Client) decode(raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := c.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
