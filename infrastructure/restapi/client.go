// Package restapi is the durable-request client for the graph authority.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/domain/core/entities"
	pkgerrors "github.com/Sakeeb91/claim-mapper-sub003/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxResponseSize = 8 << 20

// Config holds client settings
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Circuit breaker
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold float64
	BreakerMinRequests      uint32
}

// DefaultConfig returns defaults for baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:                 baseURL,
		Timeout:                 15 * time.Second,
		BreakerMaxRequests:      5,
		BreakerInterval:         30 * time.Second,
		BreakerTimeout:          60 * time.Second,
		BreakerFailureThreshold: 0.8,
		BreakerMinRequests:      5,
	}
}

// Client implements ports.GraphAPI over HTTP/JSON
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

var _ ports.GraphAPI = (*Client)(nil)

// New creates a client. Server errors (5xx and transport failures) count
// against the breaker; 4xx answers do not.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid api base url %q", cfg.BaseURL))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("restapi"),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var appErr *pkgerrors.AppError
			if errors.As(err, &appErr) && appErr.Type == pkgerrors.ErrorTypeMutationRejected {
				status, _ := appErr.Details["remote_status"].(int)
				return status < 500
			}
			return false
		},
	})
	return c, nil
}

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// LoadGraph fetches a project's full graph
func (c *Client) LoadGraph(ctx context.Context, projectID string) (*entities.GraphData, error) {
	var graph entities.GraphData
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/graph", nil, &graph, "graph"); err != nil {
		return nil, err
	}
	return &graph, nil
}

// ConnectNodes asks the authority to create a link
func (c *Client) ConnectNodes(ctx context.Context, req ports.ConnectNodesRequest) (*entities.GraphLink, error) {
	var link entities.GraphLink
	path := "/projects/" + url.PathEscape(req.ProjectID) + "/links"
	if err := c.do(ctx, http.MethodPost, path, req, &link, "link"); err != nil {
		return nil, err
	}
	if link.ID == "" {
		return nil, pkgerrors.NewMutationRejectedError("", 0).WithCause(errors.New("response carries no link id"))
	}
	return &link, nil
}

// UpdateClaim sends a field-level claim patch
func (c *Client) UpdateClaim(ctx context.Context, claimID string, changes map[string]interface{}) (*entities.Claim, error) {
	var claim entities.Claim
	if err := c.do(ctx, http.MethodPatch, "/claims/"+url.PathEscape(claimID), changes, &claim, "claim"); err != nil {
		return nil, err
	}
	if claim.ID == "" {
		claim.ID = claimID
	}
	return &claim, nil
}

// DeleteLink removes a link
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	return c.do(ctx, http.MethodDelete, "/links/"+url.PathEscape(linkID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, keys ...string) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, keys)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("Request blocked by circuit breaker", zap.String("method", method), zap.String("path", path))
		return pkgerrors.NewUnavailableError("graph api").WithCause(err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}, keys []string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.NewValidationError("request body is not encodable").WithCause(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return pkgerrors.NewInternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pkgerrors.NewTimeoutError(method + " " + path).WithCause(err)
		}
		return pkgerrors.NewTransportError("request to graph api failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return pkgerrors.NewTransportError("failed to read response", err)
	}

	c.logger.Debug("Graph API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.NewMutationRejectedError(serverMessage(raw), resp.StatusCode)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrap(raw, keys), out); err != nil {
		return pkgerrors.NewMutationRejectedError("", resp.StatusCode).WithCause(err)
	}
	return nil
}

// serverMessage extracts "message" or "error.message" from an error body
func serverMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) == 0 {
		return ""
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	var flat string
	if json.Unmarshal(body.Error, &flat) == nil {
		return flat
	}
	return ""
}

// unwrap strips a {"data": ...} envelope and then any of keys, so both bare
// and wrapped responses decode into the same type
func unwrap(raw []byte, keys []string) []byte {
	for _, key := range append([]string{"data"}, keys...) {
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return raw
		}
		if inner, ok := obj[key]; ok && len(inner) > 0 && inner[0] == '{' {
			raw = inner
		}
	}
	return raw
}
