// Package apiclient talks to the remote support API.
//
// Authenticated calls read the credential store when the request is built,
// never earlier, so a logout or a new login between two calls is always
// reflected in the next request's header.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"support-portal/internal/credential"
	"support-portal/internal/model"
	"support-portal/pkg/apierror"
)

const maxErrorBody = 1 << 20

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Breaker      BreakerConfig
}

// BreakerConfig controls the circuit breaker guarding the remote API.
type BreakerConfig struct {
	Name         string
	FailureRatio float64
	MinRequests  uint32
	OpenTimeout  time.Duration
	Interval     time.Duration
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Breaker: BreakerConfig{
			Name:         "support-api",
			FailureRatio: 0.5,
			MinRequests:  5,
			OpenTimeout:  30 * time.Second,
			Interval:     60 * time.Second,
		},
	}
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	store      credential.Store
	config     Config
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger
}

func New(cfg Config, store credential.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	bc := cfg.Breaker
	if bc.Name == "" {
		bc.Name = "support-api"
	}
	settings := gobreaker.Settings{
		Name:     bc.Name,
		Interval: bc.Interval,
		Timeout:  bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bc.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
	breakerState.WithLabelValues(bc.Name).Set(0)

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		store:      store,
		config:     cfg,
		breaker:    gobreaker.NewCircuitBreaker[*http.Response](settings),
		logger:     logger,
	}
}

// call describes one remote request. route is the path template used as the
// metrics label, path the concrete path.
type call struct {
	method   string
	route    string
	path     string
	body     any
	auth     bool
	fallback string
	out      any
}

func (c *Client) do(ctx context.Context, cl call) error {
	started := time.Now()
	err := c.execute(ctx, cl)
	observe(cl.method+" "+cl.route, err, time.Since(started))
	return err
}

func (c *Client) execute(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		encoded, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", cl.route, err)
		}
		payload = encoded
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.send(ctx, cl, payload)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, readError(resp, cl.fallback)
		}
		return resp, nil
	})
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s unavailable: %v", model.ErrNetwork, c.config.Breaker.Name, err)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp, cl.fallback)
	}

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return apierror.New("BAD_RESPONSE", cl.fallback, fmt.Sprintf("decode %s: %v", cl.route, err), http.StatusBadGateway)
	}

	return nil
}

// send issues the request, retrying idempotent GETs on transport errors and
// 5xx answers with exponential backoff.
func (c *Client) send(ctx context.Context, cl call, payload []byte) (*http.Response, error) {
	retries := 0
	if cl.method == http.MethodGet {
		retries = c.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := c.config.RetryWaitMin * time.Duration(1<<uint(attempt-1))
			if c.config.RetryWaitMax > 0 && wait > c.config.RetryWaitMax {
				wait = c.config.RetryWaitMax
			}

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", model.ErrNetwork, ctx.Err())
			}
		}

		req, err := c.newRequest(ctx, cl, payload)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s %s: %v", model.ErrNetwork, cl.method, cl.route, err)
			c.logger.Debug("remote call failed", "route", cl.route, "attempt", attempt+1, "error", err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < retries {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

func (c *Client) newRequest(ctx context.Context, cl call, payload []byte) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", cl.route, err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if cl.auth {
		for key, values := range credential.AuthHeader(ctx, c.store) {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}

	return req, nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func readError(resp *http.Response, fallback string) *apierror.APIError {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		body = nil
	}

	return apierror.FromResponse(resp.StatusCode, body, fallback)
}
