package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Client is a JSON-RPC 2.0 client with retry, timeout and rate limit support.
// It is shared by the Solana RPC and the Jito block engine integrations.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	logger       *logrus.Logger
	nextID       atomic.Uint64
}

// ClientConfig holds configuration for the RPC client
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	Logger    *logrus.Logger
}

// NewClient creates a new RPC client with retry support
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		limiter:      limiter,
		logger:       cfg.Logger,
	}
}

// BaseURL returns the endpoint the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

// Call makes a JSON-RPC call with retry logic. The full response envelope is
// decoded into result; use CallResult when only the result member matters.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.call(ctx, method, params, result, c.maxRetries)
}

// CallOnce is Call without retries, for requests that must not be sent twice
// such as submissions. A timeout or 5xx leaves the outcome unknown to the
// caller, who decides whether to send again.
func (c *Client) CallOnce(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.call(ctx, method, params, result, 0)
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}, maxRetries int) error {
	body := Request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, err := c.doRequest(ctx, data)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return err
			}
			continue
		}

		if err := json.Unmarshal(resp, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}

		return nil
	}

	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// CallResult performs Call and unwraps the envelope, turning a JSON-RPC error
// member into an *RPCError.
func CallResult[T any](ctx context.Context, c *Client, method string, params interface{}) (T, error) {
	return callResult[T](ctx, c.Call, method, params)
}

// CallResultOnce is CallResult over CallOnce.
func CallResultOnce[T any](ctx context.Context, c *Client, method string, params interface{}) (T, error) {
	return callResult[T](ctx, c.CallOnce, method, params)
}

func callResult[T any](ctx context.Context, call func(context.Context, string, interface{}, interface{}) error, method string, params interface{}) (T, error) {
	var resp Response[T]
	if err := call(ctx, method, params, &resp); err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", method, resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StatusError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &StatusError{StatusCode: resp.StatusCode, Err: fmt.Errorf("rate limited (429)")}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StatusError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	return body, nil
}

// isRetryable reports whether a transport failure is worth another try.
// Client-side 4xx responses other than 429 are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 0 || se.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return se.StatusCode >= 500
	}
	return true
}
