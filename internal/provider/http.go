package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/pipeline"
)

// Environment hosts, provider-style.
var environments = map[string]string{
	"sandbox":    "https://sandbox.aggregation.example.com",
	"production": "https://production.aggregation.example.com",
}

// HTTPClient talks to the aggregation provider's REST API. Credentials ride
// in every request body, which is how the provider's API authenticates.
type HTTPClient struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
	log        zerolog.Logger
}

// HTTPClientConfig configures a provider HTTP client. Env selects the host
// ("sandbox" or "production"); BaseURL overrides it when set.
type HTTPClientConfig struct {
	Env      string
	BaseURL  string
	ClientID string
	Secret   string
	Timeout  time.Duration
}

func NewHTTPClient(cfg HTTPClientConfig, log zerolog.Logger) (*HTTPClient, error) {
	base := cfg.BaseURL
	if base == "" {
		host, ok := environments[cfg.Env]
		if !ok {
			return nil, fmt.Errorf("NewHTTPClient: unknown provider environment %q", cfg.Env)
		}
		base = host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    base,
		clientID:   cfg.ClientID,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

func (c *HTTPClient) CreateLinkSession(ctx context.Context, userID uint) (string, error) {
	body := map[string]any{
		"client_id":      c.clientID,
		"secret":         c.secret,
		"client_name":    "Ledgerline",
		"products":       []string{"transactions"},
		"country_codes":  []string{"GB"},
		"language":       "en",
		"client_user_id": strconv.FormatUint(uint64(userID), 10),
	}
	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, "/link/token/create", body, &resp); err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

func (c *HTTPClient) ExchangeSession(ctx context.Context, publicToken string) (ExchangeResult, error) {
	body := map[string]any{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"public_token": publicToken,
	}
	var resp ExchangeResult
	if err := c.post(ctx, "/item/public_token/exchange", body, &resp); err != nil {
		return ExchangeResult{}, err
	}
	return resp, nil
}

func (c *HTTPClient) SyncPage(ctx context.Context, accessToken string, cursor *string) (SyncPage, error) {
	body := map[string]any{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}
	if cursor != nil {
		body["cursor"] = *cursor
	}
	var resp SyncPage
	if err := c.post(ctx, "/transactions/sync", body, &resp); err != nil {
		return SyncPage{}, err
	}
	return resp, nil
}

func (c *HTTPClient) GetBalances(ctx context.Context, accessToken string) ([]Balance, error) {
	body := map[string]any{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}
	var resp struct {
		Accounts []Balance `json:"accounts"`
	}
	if err := c.post(ctx, "/accounts/balance/get", body, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("provider: marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("provider: build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &pipeline.UpstreamError{
			Op:      "provider" + path,
			Timeout: isTimeout(err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &pipeline.UpstreamError{Op: "provider" + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("provider request failed")
		return &pipeline.UpstreamError{
			Op:  "provider" + path,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, raw),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &pipeline.UpstreamError{
			Op:  "provider" + path,
			Err: fmt.Errorf("decoding response: %w", err),
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
