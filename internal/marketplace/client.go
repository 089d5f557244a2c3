package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// maxRetryWait caps both Retry-After and computed backoff.
const maxRetryWait = 30 * time.Second

// ClientOptions tunes the HTTP client. Zero values fall back to defaults.
type ClientOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Client is a thin HTTP client for the marketplace REST API.
// It handles Bearer token authentication, JSON marshaling, retries
// with exponential backoff, and a circuit breaker that stops hammering a
// backend that keeps failing.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retries    []time.Duration
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// NewClient creates a new marketplace HTTP client. The baseURL should be
// the API root (e.g., https://market.example.com/api); the token is sent
// as a Bearer credential when non-empty.
func NewClient(baseURL, token string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	logger := opts.Logger.Named("marketplace")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "marketplace",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the backend is alive.
			return err == nil || KindOf(err) == KindValidation || IsNotFound(err) || IsAuthError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		retries: retrier.ExponentialBackoff(opts.MaxRetries, opts.RetryBackoff),
		breaker: breaker,
		logger:  logger,
	}
}

// Get performs an HTTP GET request and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, op, path string) ([]byte, error) {
	return c.do(ctx, op, http.MethodGet, path, nil)
}

// Patch performs an HTTP PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, op, path string, body interface{}) error {
	_, err := c.do(ctx, op, http.MethodPatch, path, body)
	return err
}

// Put performs an HTTP PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, op, path string, body interface{}) error {
	_, err := c.do(ctx, op, http.MethodPut, path, body)
	return err
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, op, path string) error {
	_, err := c.do(ctx, op, http.MethodDelete, path, nil)
	return err
}

// retryableError carries the server's requested wait into the classifier.
type retryableError struct {
	err   error
	after time.Duration
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// retryClassifier retries only errors wrapped in retryableError.
type retryClassifier struct{}

func (retryClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	var r *retryableError
	if errors.As(err, &r) {
		return retrier.Retry
	}
	return retrier.Fail
}

// do is the core HTTP method: it runs the request through the breaker and
// the retrier and maps failures onto *Error.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body interface{},
) ([]byte, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Kind: KindValidation, Err: fmt.Errorf("marshaling request body: %w", err)}
		}
		payload = data
	}

	result, err := c.breaker.Execute(func() ([]byte, error) {
		var respBody []byte
		r := retrier.New(c.retries, retryClassifier{})
		runErr := r.RunCtx(ctx, func(ctx context.Context) error {
			var attemptErr error
			respBody, attemptErr = c.attempt(ctx, op, method, path, payload)
			var retry *retryableError
			if errors.As(attemptErr, &retry) && retry.after > 0 {
				c.logger.Debug("retrying request",
					zap.String("op", op),
					zap.String("method", method),
					zap.Duration("wait", retry.after),
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retry.after):
				}
			}
			return attemptErr
		})
		return respBody, unwrapRetryable(runErr)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Op: op, Kind: KindNetwork, Err: err}
		}
		var e *Error
		var authErr *AuthError
		if errors.As(err, &e) || errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &Error{Op: op, Kind: KindNetwork, Err: err}
	}

	return result, nil
}

// attempt sends a single request.
func (c *Client) attempt(
	ctx context.Context,
	op string,
	method string,
	path string,
	payload []byte,
) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("executing request %s %s: %w", method, path, err)}
		if method == http.MethodGet && ctx.Err() == nil {
			return nil, &retryableError{err: netErr}
		}
		return nil, netErr
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("reading response body: %w", readErr)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{
			BaseURL: c.baseURL,
			Message: "authentication failed (401): check your API token",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{
			err:   statusError(op, method, path, resp.StatusCode, respBody),
			after: retryAfter(resp),
		}

	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		err := statusError(op, method, path, resp.StatusCode, respBody)
		if method == http.MethodGet {
			return nil, &retryableError{err: err, after: retryAfter(resp)}
		}
		return nil, err

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, statusError(op, method, path, resp.StatusCode, respBody)
	}

	return respBody, nil
}

// apiErrorBody is the error envelope most marketplace endpoints return.
type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func statusError(op, method, path string, status int, body []byte) *Error {
	detail := strings.TrimSpace(string(body))
	var apiErr apiErrorBody
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			detail = apiErr.Message
		} else if apiErr.Error != "" {
			detail = apiErr.Error
		}
	}
	return &Error{
		Op:         op,
		Kind:       kindForStatus(status),
		StatusCode: status,
		Err:        fmt.Errorf("unexpected status %d on %s %s: %s", status, method, path, detail),
	}
}

func unwrapRetryable(err error) error {
	var r *retryableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}

// retryAfter reads the Retry-After header in seconds. Zero means the
// retrier's own backoff applies.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	wait := time.Duration(seconds) * time.Second
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait
}
