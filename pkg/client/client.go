// Package client is a Go client for the sitesmith HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/nstogner/sitesmith/pkg/domain"
)

// Client talks to a sitesmith server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListProjects returns all projects, most recently updated first.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects)
	return projects, err
}

// CreateProject creates a project from its first prompt and starts a run.
func (c *Client) CreateProject(ctx context.Context, value string) (*domain.Project, error) {
	var p domain.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", map[string]string{"value": value}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject fetches a project.
func (c *Client) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListMessages returns a project's messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, projectID string) ([]domain.Message, error) {
	var msgs []domain.Message
	err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/messages", nil, &msgs)
	return msgs, err
}

// PostMessage sends a follow-up prompt and starts a run.
func (c *Client) PostMessage(ctx context.Context, projectID, value string) (*domain.Message, error) {
	var m domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/messages", map[string]string{"value": value}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SendEvent emits a raw code-agent/run event.
func (c *Client) SendEvent(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	var run domain.Run
	body := map[string]any{"name": domain.EventRun, "data": req}
	if err := c.do(ctx, http.MethodPost, "/api/events", body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun fetches a run.
func (c *Client) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var run domain.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Stream delivers the project's messages, then every new one, until ctx is
// done or the connection drops. The channel is closed when streaming stops.
func (c *Client) Stream(ctx context.Context, projectID string) (<-chan domain.Message, error) {
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/projects/" + url.PathEscape(projectID) + "/stream"
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	out := make(chan domain.Message, 16)
	go func() {
		<-ctx.Done()
		ws.Close()
	}()
	go func() {
		defer close(out)
		defer ws.Close()
		for {
			var m domain.Message
			if err := ws.ReadJSON(&m); err != nil {
				if ctx.Err() == nil {
					slog.Debug("Stream closed", "projectID", projectID, "error", err)
				}
				return
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
