// Package etherscan fetches verified contract interfaces from a
// block-explorer API. It is the population side of the ABI cache; nothing
// else in the module talks to the explorer.
package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/makerwatch/chieftally/pkg/logger"
)

const (
	// DefaultBaseURL is the Etherscan mainnet API endpoint.
	DefaultBaseURL = "https://api.etherscan.io/api"

	defaultHTTPTimeout   = 10 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// ErrNotVerified is returned when the explorer has no verified source for an
// address. Callers treat it as "no interface available", not as a transport
// failure.
var ErrNotVerified = errors.New("contract source not verified")

// Client queries the explorer's contract module.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	lggr       logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the explorer API key. Anonymous access works but is
// heavily rate limited.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient returns a Client for the given API base URL.
func NewClient(lggr logger.Logger, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		lggr:       lggr,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// envelope is the standard explorer response wrapper. For getabi, result is
// the ABI JSON itself as a string.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// ContractABI fetches the verified ABI JSON for address. Transport and
// malformed-body failures are retried; a definitive "not verified" answer is
// returned as ErrNotVerified without retrying.
func (c *Client) ContractABI(ctx context.Context, address common.Address) (string, error) {
	var abiJSON string

	err := retry.Do(func() error {
		var err error
		abiJSON, err = c.contractABI(ctx, address)

		return err
	},
		retry.Context(ctx),
		retry.Attempts(defaultRetryAttempts),
		retry.Delay(defaultRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrNotVerified) }),
		retry.OnRetry(func(n uint, err error) {
			c.lggr.Warnf("etherscan getabi for %s failed (attempt %d): %v", address.Hex(), n+1, err)
		}),
	)
	if err != nil {
		return "", err
	}

	return abiJSON, nil
}

func (c *Client) contractABI(ctx context.Context, address common.Address) (string, error) {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getabi")
	q.Set("address", address.Hex())
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("explorer returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading explorer response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("malformed explorer response: %w", err)
	}

	if env.Status != "1" {
		// The explorer answers status "0" both for unverified contracts and
		// for rate limiting; only the former carries this result text.
		if env.Result == "Contract source code not verified" {
			return "", fmt.Errorf("%w: %s", ErrNotVerified, address.Hex())
		}

		return "", fmt.Errorf("explorer error: %s: %s", env.Message, env.Result)
	}

	return env.Result, nil
}
