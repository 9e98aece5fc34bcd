// Package portalclient talks to the service portal HTTP API. It backs the
// complaint wizard's submit step, the operator console and the CLI tools.
package portalclient

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

	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/pkg/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
	tabID string
}

// NewClient creates a client for the API rooted at baseURL, e.g.
// https://portal.example.com (the /v1 prefix is added per request)
func NewClient(baseURL string, logger *zap.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SetToken sets the bearer token sent on admin requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetTabID identifies this client on the broadcast channel, so mutations
// it makes are not echoed back to it
func (c *Client) SetTabID(tabID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabID = tabID
}

// errorBody is the error payload written by the API
type errorBody struct {
	Error   string              `json:"error"`
	Details []errors.FieldError `json:"details,omitempty"`
	From    string              `json:"from,omitempty"`
	To      string              `json:"to,omitempty"`
}

// doJSON sends body as JSON and decodes a JSON response into out
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, header http.Header, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, op, out)
}

// send executes req and translates the response into the typed errors of
// pkg/errors. Network failures and 5xx answers become *errors.ErrTransport.
func (c *Client) send(req *http.Request, op string, out interface{}) error {
	c.mu.RLock()
	token, tabID := c.token, c.tabID
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if tabID != "" {
		req.Header.Set("X-Tab-ID", tabID)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errors.ErrTransport{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.ErrTransport{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &errors.ErrTransport{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
		}
		return nil
	}

	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	if eb.Error == "" {
		eb.Error = strings.TrimSpace(string(body))
	}

	c.logger.Debug("API request failed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("error", eb.Error),
	)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &errors.ErrNotFound{Resource: "record", ID: req.URL.Path}
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		if len(eb.Details) == 0 {
			eb.Details = []errors.FieldError{{Field: "request", Message: eb.Error}}
		}
		return &errors.ErrValidation{Fields: eb.Details}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &errors.ErrUnauthorized{Message: eb.Error}
	case http.StatusConflict:
		if eb.From != "" || eb.To != "" {
			return &errors.ErrInvalidStateTransition{From: eb.From, To: eb.To}
		}
		return &errors.ErrConflict{Message: eb.Error}
	default:
		return &errors.ErrTransport{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", eb.Error)}
	}
}
