// Package completion talks to an OpenAI-compatible chat-completion API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"ai-workflows/backend/internal/logging"
)

const maxErrorBody = 512

// Client is an interface for calling the chat-completion API.
type Client interface {
	// Complete sends one request and returns the decoded reply.
	Complete(ctx context.Context, req *Request) (*Reply, error)
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion api returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single call. Zero means no local bound.
	Timeout time.Duration
	Breaker BreakerOptions
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// BreakerOptions configures the circuit breaker in front of the API.
type BreakerOptions struct {
	Enabled     bool
	MaxFailures uint32
	OpenTimeout time.Duration
}

// HTTPClient is an HTTP implementation of the Client interface.
type HTTPClient struct {
	url     string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewHTTPClient creates a new HTTPClient. Calls carry the API key as a
// bearer token.
func NewHTTPClient(opts Options, logger *logging.Logger) *HTTPClient {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = logging.Discard()
	}

	c := &HTTPClient{
		url:     opts.BaseURL + "/chat/completions",
		timeout: opts.Timeout,
		http: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIKey, TokenType: "Bearer"}),
				Base:   otelhttp.NewTransport(base),
			},
		},
		logger: logger,
	}

	if opts.Breaker.Enabled {
		maxFailures := opts.Breaker.MaxFailures
		if maxFailures == 0 {
			maxFailures = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "completion-api",
			MaxRequests: 1,
			Timeout:     opts.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: breakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return c
}

// breakerSuccess reports whether err leaves the breaker's failure count
// alone. A caller giving up and a request rejected for its own content are
// not upstream faults; 408 and 429 are.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		return code >= 400 && code < 500 &&
			code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
	}
	return false
}

// Complete sends req to the chat-completion endpoint.
func (c *HTTPClient) Complete(ctx context.Context, req *Request) (*Reply, error) {
	if c.breaker == nil {
		return c.do(ctx, req)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Reply), nil
}

func (c *HTTPClient) do(ctx context.Context, req *Request) (*Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	c.logger.FromContext(ctx).Debug("completion call finished",
		"model", reply.Model,
		"choices", len(reply.Choices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &reply, nil
}
