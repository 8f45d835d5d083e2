package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/groundctl/gnd/internal/api"
)

// Client talks to the daemon API over its Unix domain socket.
type Client struct {
	http *http.Client
	poll *http.Client
}

// New returns a client dialing the daemon's Unix domain socket. The host
// part of request URLs is a placeholder; routing happens on the socket.
func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: 10 * time.Second},
		// Long polls outlive the regular request timeout.
		poll: &http.Client{Transport: transport, Timeout: 45 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://gnd"+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("daemon: %s", apiErr.Message)
		}
		return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Status fetches the daemon session status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Surveys fetches the ordered survey list with its load status.
func (c *Client) Surveys(ctx context.Context) (*api.SurveyListResponse, error) {
	var out api.SurveyListResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/v1/surveys", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Survey fetches the offline detail of one survey.
func (c *Client) Survey(ctx context.Context, surveyID string) (*api.SurveyDetailResponse, error) {
	var out api.SurveyDetailResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/v1/surveys/"+surveyID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Activate downloads a survey for offline use and makes it active.
func (c *Client) Activate(ctx context.Context, surveyID string) error {
	return c.do(ctx, c.http, http.MethodPost, "/v1/surveys/"+surveyID+"/activate", nil, nil)
}

// RemoveOffline deletes a survey's local copy.
func (c *Client) RemoveOffline(ctx context.Context, surveyID string) error {
	return c.do(ctx, c.http, http.MethodDelete, "/v1/surveys/"+surveyID+"/offline", nil, nil)
}

// QueueSubmission queues one collected submission for upload.
func (c *Client) QueueSubmission(ctx context.Context, req *api.SubmissionRequest) (*api.SubmissionResponse, error) {
	var out api.SubmissionResponse
	if err := c.do(ctx, c.http, http.MethodPost, "/v1/submissions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Terms fetches the terms-of-service text.
func (c *Client) Terms(ctx context.Context) (*api.TermsResponse, error) {
	var out api.TermsResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/v1/terms", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignOut clears the stored identity.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, c.http, http.MethodPost, "/v1/session/signout", nil, nil)
}

// PollEvents long-polls for daemon bus events for up to waitSecs seconds.
func (c *Client) PollEvents(ctx context.Context, waitSecs int) (*api.EventsResponse, error) {
	var out api.EventsResponse
	path := fmt.Sprintf("/v1/events?wait=%d", waitSecs)
	if err := c.do(ctx, c.poll, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
