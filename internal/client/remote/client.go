// Package remote is the offline client's HTTP binding to the workout sync API.
package remote

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

	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status int
	Type   string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, e.Type)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Type, e.Detail)
}

// Retryable reports whether sending the same request later may succeed.
func (e *StatusError) Retryable() bool {
	switch {
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusRequestTimeout:
		return true
	case e.Status == http.StatusUnauthorized:
		// An expired token is refreshed out of band.
		return true
	default:
		return e.Status >= 500
	}
}

// IsRetryable reports whether err is transient. Transport failures always are.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return err != nil
}

// Client calls the sync API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New constructs a client with a bounded request timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks that the server answers its health probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// GetDraft returns the remote draft slot, or nil when it is empty or expired.
func (c *Client) GetDraft(ctx context.Context) (*wire.Draft, error) {
	var resp wire.GetDraftResponse
	if err := c.do(ctx, http.MethodGet, "/v1/drafts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Draft, nil
}

// SaveDraft overwrites the remote draft slot with a full snapshot.
func (c *Client) SaveDraft(ctx context.Context, name string, data json.RawMessage) (*wire.Draft, error) {
	var resp wire.SaveDraftResponse
	if err := c.do(ctx, http.MethodPost, "/v1/drafts", wire.SaveDraftRequest{Name: name, Data: data}, &resp); err != nil {
		return nil, err
	}
	return &resp.Draft, nil
}

// DeleteDraft removes the draft with id, or every draft of the caller when id is empty.
func (c *Client) DeleteDraft(ctx context.Context, id string) (int, error) {
	path := "/v1/drafts"
	if id != "" {
		path += "?id=" + url.QueryEscape(id)
	}
	var resp wire.DeleteDraftsResponse
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// Sync submits completed workouts and the drafts they retire.
func (c *Client) Sync(ctx context.Context, req wire.SyncRequest) (*wire.SyncResponse, error) {
	var resp wire.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Exercises fetches the exercise catalog.
func (c *Client) Exercises(ctx context.Context) ([]wire.Exercise, error) {
	var resp wire.ExercisesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/exercises", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Exercises, nil
}

// Workouts lists stored workouts, newest first.
func (c *Client) Workouts(ctx context.Context, cursor string, limit int) (*wire.ListWorkoutsResponse, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/workouts"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp wire.ListWorkoutsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		statusErr := &StatusError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload wire.ErrorResponse
		if json.Unmarshal(data, &payload) == nil && payload.Type != "" {
			statusErr.Type = payload.Type
			statusErr.Detail = payload.Detail
		} else {
			statusErr.Type = http.StatusText(resp.StatusCode)
			statusErr.Detail = string(bytes.TrimSpace(data))
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
