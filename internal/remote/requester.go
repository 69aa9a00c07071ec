package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNetwork covers transport failures, non-2xx responses and an open circuit.
	ErrNetwork = errors.New("network error")
	// ErrDecode is returned when a response body is not in the expected shape.
	ErrDecode = errors.New("decode error")

	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// Config bundles the HTTP client and the outbound limits for one remote service.
type Config struct {
	Name   string
	Client *http.Client

	// RPS is the steady request rate allowed towards the service (0 = unlimited).
	RPS   float64
	Burst int
}

// Requester issues GET requests against a single remote JSON service.
// It never retries; callers decide whether a failure is worth another attempt.
type Requester struct {
	name    string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewRequester(cfg Config, logger *zap.Logger) *Requester {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Requester{
		name:    cfg.Name,
		client:  cfg.Client,
		circuit: cb,
		limiter: limiter,
		logger:  logger,
	}
}

// GetJSON performs a GET on endpoint with the given query and decodes the body into out.
func (r *Requester) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if r.client == nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, r.name, errNoHTTPClient)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrNetwork, err)
	}

	u := endpoint
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", r.name, err)
	}
	req.Header.Set("Accept", "application/json")

	result, err := r.circuit.Execute(func() (interface{}, error) {
		resp, execErr := r.client.Do(req)
		if execErr != nil {
			if ctx.Err() != nil {
				// Caller cancellation is not a remote failure.
				return cancelled{err: execErr}, nil
			}
			return nil, execErr
		}

		// Handle rate limiting and server errors explicitly.
		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp.Body)
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			drain(resp.Body)
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drain(resp.Body)
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w: %v", ErrNetwork, errCircuitOpen, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrNetwork, r.name, err)
	}

	var resp *http.Response
	switch v := result.(type) {
	case cancelled:
		return fmt.Errorf("%w: %s: %w", ErrNetwork, r.name, v.err)
	case *http.Response:
		resp = v
	default:
		return fmt.Errorf("%w: unexpected result type from circuit breaker", ErrNetwork)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("failed to close response body", zap.String("service", r.name), zap.Error(cerr))
		}
	}()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, r.name, err)
	}
	return nil
}

type cancelled struct {
	err error
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
