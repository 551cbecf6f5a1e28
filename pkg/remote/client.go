// Package remote is the thin HTTP gateway to the authoritative sheet
// backend. It does no retries and keeps no state; retry and backoff policy
// belong to the sync engine.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"emberpost/pkg/logger"
	"emberpost/pkg/models"
)

// ErrUnavailable covers network faults, timeouts and non-2xx responses.
var ErrUnavailable = errors.New("remote store unavailable")

// ErrMalformedData covers responses that do not match the expected shape.
var ErrMalformedData = errors.New("malformed remote data")

// Client talks to the single-endpoint sheet backend. The verb is carried in
// the query string for reads and in the JSON body for writes.
type Client struct {
	endpoint    string
	httpc       *fasthttp.Client
	pingTimeout time.Duration
}

// New returns a client bound to the given endpoint URL.
func New(endpoint string, pingTimeout time.Duration) *Client {
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "?&"),
		httpc: &fasthttp.Client{
			Name:                "emberpost",
			MaxIdleConnDuration: time.Minute,
		},
		pingTimeout: pingTimeout,
	}
}

// Ping probes connectivity. True only when the backend answers with the
// literal token "pong" within the probe timeout; any fault reads as false
// and is never raised to the caller.
func (c *Client) Ping() bool {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint + "?action=ping")
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.httpc.DoTimeout(req, resp, c.pingTimeout); err != nil {
		logger.Debug("remote_ping_failed", "error", err)
		return false
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return false
	}
	body := strings.TrimSpace(string(resp.Body()))
	return body == "pong" || body == `"pong"`
}

// ListLetters fetches the full letter collection. Expired entries are not
// filtered here; that is the loader's job.
func (c *Client) ListLetters() ([]models.Letter, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint + "?action=getLetters")
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.httpc.Do(req, resp); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: list: status %d", ErrUnavailable, resp.StatusCode())
	}
	var letters []models.Letter
	if err := json.Unmarshal(resp.Body(), &letters); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrMalformedData, err)
	}
	return letters, nil
}

// CreateLetter posts a new letter. The backend accepts or rejects but never
// reassigns the ID.
func (c *Client) CreateLetter(letter models.Letter) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.post(map[string]any{"action": "addLetter", "letter": letter}, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// UpdateLetter posts a partial update; the backend merges the fields into
// its record keyed by id.
func (c *Client) UpdateLetter(id string, updates any) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.post(map[string]any{"action": "updateLetter", "letterId": id, "updates": updates}, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *Client) post(payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)
	if err := c.httpc.Do(req, resp); err != nil {
		return fmt.Errorf("%w: post: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("%w: post: status %d", ErrUnavailable, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: post: %v", ErrMalformedData, err)
	}
	return nil
}
