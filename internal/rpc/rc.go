package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/justyntemme/duopane/internal/debug"
)

// ServiceError is a non-2xx reply from the listing service.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("listing service error (status %d): %s", e.Status, e.Message)
}

// RCConfig configures an RCClient.
type RCConfig struct {
	BaseURL string // e.g. http://localhost:5572
	User    string
	Pass    string
	Timeout time.Duration
	Retry   RetryConfig
}

// RCClient talks to an rclone remote-control endpoint.
type RCClient struct {
	baseURL    string
	user       string
	pass       string
	httpClient *http.Client
	retry      RetryConfig
}

// NewRCClient creates a client for the rc API.
func NewRCClient(cfg RCConfig) *RCClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &RCClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		user:    cfg.User,
		pass:    cfg.Pass,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    16,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		retry: cfg.Retry,
	}
}

// List implements ListService via POST operations/list.
func (c *RCClient) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call(ctx, "operations/list", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRemotes returns the configured remote names via POST config/listremotes.
func (c *RCClient) ListRemotes(ctx context.Context) ([]string, error) {
	var resp struct {
		Remotes []string `json:"remotes"`
	}
	if err := c.call(ctx, "config/listremotes", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Remotes, nil
}

func (c *RCClient) call(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	_, err = withRetry(ctx, c.retry, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.user != "" {
			req.SetBasicAuth(c.user, c.pass)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, ctx.Err()
			}
			debug.Log(debug.REMOTE, "rc %s: %v", endpoint, err)
			return struct{}{}, retryable(fmt.Errorf("execute %s: %w", endpoint, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			svcErr := decodeServiceError(resp)
			if resp.StatusCode >= 500 {
				// rclone reports missing directories as 500 with an error body
				if strings.Contains(svcErr.Message, "not found") {
					return struct{}{}, svcErr
				}
				return struct{}{}, retryable(svcErr)
			}
			return struct{}{}, svcErr
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return struct{}{}, nil
	})
	return err
}

func decodeServiceError(resp *http.Response) *ServiceError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &ServiceError{Status: resp.StatusCode, Message: msg}
}
