package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/infra/history"
)

// APIError is a non-2xx response from the control API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return strconv.Itoa(e.Status) + ": " + e.Message
}

// Client calls the control API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set(AdminTokenHeader, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var msg MessageResponse
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil || msg.Message == "" {
			msg.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// Status fetches the session status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	return &out, c.do(ctx, http.MethodGet, "/api/status", nil, &out)
}

// Queue fetches the current track and the pending queue.
func (c *Client) Queue(ctx context.Context) (*QueueResponse, error) {
	var out QueueResponse
	return &out, c.do(ctx, http.MethodGet, "/api/queue", nil, &out)
}

// Request queues a search query or link.
func (c *Client) Request(ctx context.Context, query, requestedBy string) (*RequestResponse, error) {
	var out RequestResponse
	return &out, c.do(ctx, http.MethodPost, "/api/request", RequestBody{Query: query, RequestedBy: requestedBy}, &out)
}

// Command posts a no-argument control command: play, pause, resume, skip, stop or shuffle.
func (c *Client) Command(ctx context.Context, name string) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/"+name, nil, &out)
	return out.Message, err
}

// Remove removes the track at a 1-based queue position.
func (c *Client) Remove(ctx context.Context, position int) (*TrackResponse, error) {
	var out TrackResponse
	return &out, c.do(ctx, http.MethodDelete, "/api/queue/"+strconv.Itoa(position), nil, &out)
}

// Move moves a queued track.
func (c *Client) Move(ctx context.Context, from, to int) (*TrackResponse, error) {
	var out TrackResponse
	return &out, c.do(ctx, http.MethodPost, "/api/queue/move", MoveBody{From: from, To: to}, &out)
}

// Clear empties the queue.
func (c *Client) Clear(ctx context.Context) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodDelete, "/api/queue", nil, &out)
	return out.Message, err
}

// SetRadio toggles radio mode.
func (c *Client) SetRadio(ctx context.Context, enabled bool) (*StatusResponse, error) {
	var out StatusResponse
	return &out, c.do(ctx, http.MethodPut, "/api/radio", RadioBody{Enabled: enabled}, &out)
}

// History fetches recent plays, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]history.Entry, error) {
	var out []history.Entry
	return out, c.do(ctx, http.MethodGet, "/api/history?limit="+strconv.Itoa(limit), nil, &out)
}

// Listeners fetches every known requester.
func (c *Client) Listeners(ctx context.Context) ([]ListenerResponse, error) {
	var out []ListenerResponse
	return out, c.do(ctx, http.MethodGet, "/api/listeners", nil, &out)
}

// Watch streams notifications to fn until ctx ends or the server closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(*notification.Notification)) error {
	u, err := url.Parse(c.baseURL + "/api/events")
	if err != nil {
		return errors.Wrap(err, "invalid server address")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set(AdminTokenHeader, c.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return errors.Wrap(err, "failed to connect event stream")
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var n notification.Notification
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "event stream failed")
		}
		fn(&n)
	}
}
