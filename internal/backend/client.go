package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/osse101/adlink/internal/domain"
	"github.com/osse101/adlink/internal/linking"
	"github.com/osse101/adlink/internal/logger"
)

// Config configures a Client
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client talks to the hosted backend that owns provider credentials
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
}

// APIError is an error reported by the backend in its response body.
// Its text is the backend's message, shown to users as is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap lets callers match backend failures with errors.Is
func (e *APIError) Unwrap() error {
	return domain.ErrExchangeFailure
}

type accountsResponse struct {
	Accounts []domain.ExternalAccountChoice `json:"accounts"`
	Error    string                         `json:"error,omitempty"`
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

var _ linking.Backend = (*Client)(nil)

// Exchange trades an authorization code for the accounts the user may link.
// Codes are single use, so the request is sent exactly once.
func (c *Client) Exchange(ctx context.Context, req linking.ExchangeRequest) ([]domain.ExternalAccountChoice, error) {
	return c.accounts(ctx, http.MethodPost, PathExchange, req, 0)
}

// ListAccounts lists linkable accounts for a tenant's completed login
func (c *Client) ListAccounts(ctx context.Context, tenantID string, provider domain.Provider) ([]domain.ExternalAccountChoice, error) {
	params := url.Values{}
	params.Set("tenant_id", tenantID)
	path := fmt.Sprintf(PathAccounts, url.PathEscape(string(provider))) + "?" + params.Encode()
	return c.accounts(ctx, http.MethodGet, path, nil, c.maxRetries)
}

func (c *Client) accounts(ctx context.Context, method, path string, body interface{}, retries int) ([]domain.ExternalAccountChoice, error) {
	resp, err := c.doRequest(ctx, method, path, body, retries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out accountsResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: out.Error}
		}
		return nil, fmt.Errorf("%w: %s: %d", domain.ErrExchangeFailure, ErrMsgUnexpectedStatus, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExchangeFailure, ErrMsgDecodeResponse, decodeErr)
	}
	if out.Error != "" {
		return nil, &APIError{Status: resp.StatusCode, Message: out.Error}
	}
	return out.Accounts, nil
}

// doRequest performs an HTTP request, retrying transport failures and 5xx
// responses up to retries times with exponential backoff
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, retries int) (*http.Response, error) {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrMsgMarshalBody, err)
		}
	}

	log := logger.FromContext(ctx)
	target := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info(LogMsgRetrying, "attempt", attempt, "path", path, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrMsgCreateRequest, err)
		}
		req.Header.Set(HeaderContentType, ContentTypeJSON)
		if c.apiKey != "" {
			req.Header.Set(HeaderAPIKey, c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
			}
			lastErr = err
			log.Warn(LogMsgRequestFailed, "error", err, "attempt", attempt)
			continue
		}

		if resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("%s: %d", ErrMsgServerError, resp.StatusCode)
		log.Warn(LogMsgServerError, "status", resp.StatusCode, "attempt", attempt)
	}

	if retries == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, ErrMsgMaxRetries, lastErr)
}
