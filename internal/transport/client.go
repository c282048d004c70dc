// Package transport performs outbound HTTP calls for invoke targets and
// HTTP-backed datasource providers, with circuit breaking and backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/binding"
	"github.com/lattice-lang/lattice/pkg/logging"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// Config holds transport settings. Service names map to base URLs so
// documents can invoke by name instead of hard-coding addresses.
type Config struct {
	// BaseURL is the base for endpoint targets.
	BaseURL string

	// Services maps service names to their base URLs.
	Services map[string]string

	// BearerTokens maps a service name (or "default") to the token used
	// for auth="bearer" invokes.
	BearerTokens map[string]string

	// BasicUser and BasicPassword serve auth="basic" invokes.
	BasicUser     string
	BasicPassword string

	// Timeout bounds each HTTP request. Default 30s.
	Timeout time.Duration

	Retry   RetryConfig
	Breaker BreakerConfig
}

// Client issues outbound HTTP requests. It satisfies the interpreter's
// invoker interface. Declared per-invoke retries stay with the caller;
// the client's own retryer only backs PostJSON.
type Client struct {
	config  Config
	http    *http.Client
	retryer *Retryer
	log     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// New builds a transport client.
func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	httpTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		config:   config,
		http:     &http.Client{Transport: httpTransport, Timeout: config.Timeout},
		retryer:  NewRetryer(config.Retry),
		log:      logging.ModuleLogger("transport"),
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Invoke performs the HTTP call for a url, endpoint, or service target
// and returns the decoded response body.
func (c *Client) Invoke(ctx context.Context, inv *ast.Invoke, params map[string]any) (any, error) {
	target, service, err := c.resolveTarget(inv)
	if err != nil {
		return nil, err
	}

	breaker := c.breakerFor(service)
	if err := breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%s: %w", service, err)
	}

	result, err := c.do(ctx, service, target, inv, params)
	if err != nil {
		breaker.RecordFailure()
		return nil, err
	}
	breaker.RecordSuccess()
	return result, nil
}

// PostJSON posts a JSON body and decodes a JSON response, retrying
// transient failures. Datasource providers call external APIs through
// this.
func (c *Client) PostJSON(ctx context.Context, service, rawURL string, headers map[string]string, body any) (any, error) {
	retryer := c.retryer.WithService(service)
	return DoWithResult(ctx, retryer, func(ctx context.Context) (any, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: encoding request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return c.roundTrip(service, req)
	})
}

func (c *Client) resolveTarget(inv *ast.Invoke) (target, service string, err error) {
	switch inv.TargetKind() {
	case "url":
		u, err := url.Parse(inv.URL)
		if err != nil {
			return "", "", fmt.Errorf("transport: invalid url %q: %v", inv.URL, err)
		}
		return inv.URL, u.Host, nil
	case "endpoint":
		if c.config.BaseURL == "" {
			return "", "", fmt.Errorf("transport: endpoint target %q but no base URL configured", inv.Endpoint)
		}
		base := strings.TrimSuffix(c.config.BaseURL, "/")
		return base + "/" + strings.TrimPrefix(inv.Endpoint, "/"), "api", nil
	case "service":
		base, ok := c.config.Services[inv.Service]
		if !ok {
			return "", "", fmt.Errorf("transport: unknown service %q", inv.Service)
		}
		return base, inv.Service, nil
	default:
		return "", "", fmt.Errorf("transport: invoke %q has no remote target", inv.Name)
	}
}

func (c *Client) do(ctx context.Context, service, target string, inv *ast.Invoke, params map[string]any) (any, error) {
	method := strings.ToUpper(inv.Method)
	if method == "" {
		method = http.MethodGet
		if len(params) > 0 {
			method = http.MethodPost
		}
	}

	var bodyReader io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, binding.Stringify(v))
			}
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + q.Encode()
		}
	} else {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("transport: encoding params: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range inv.Headers {
		req.Header.Set(k, v)
	}
	if err := c.applyAuth(req, inv.Auth, service); err != nil {
		return nil, err
	}
	return c.roundTrip(service, req)
}

func (c *Client) applyAuth(req *http.Request, auth, service string) error {
	switch auth {
	case "", "none":
		return nil
	case "bearer":
		token, ok := c.config.BearerTokens[service]
		if !ok {
			token, ok = c.config.BearerTokens["default"]
		}
		if !ok {
			return fmt.Errorf("transport: no bearer token configured for %q", service)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	case "basic":
		if c.config.BasicUser == "" {
			return fmt.Errorf("transport: basic auth requested but no credentials configured")
		}
		req.SetBasicAuth(c.config.BasicUser, c.config.BasicPassword)
		return nil
	default:
		return fmt.Errorf("transport: unsupported auth mode %q", auth)
	}
}

func (c *Client) roundTrip(service string, req *http.Request) (any, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ExternalRequestSeconds.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalRequestErrors.WithLabelValues(service).Inc()
		return nil, fmt.Errorf("transport: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		metrics.ExternalRequestErrors.WithLabelValues(service).Inc()
		return nil, fmt.Errorf("transport: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		metrics.ExternalRequestErrors.WithLabelValues(service).Inc()
		c.log.Warn("request failed", "service", service, "status", resp.StatusCode, "url", req.URL.String())
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s returned %d", service, resp.StatusCode),
			Body:       body,
		}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("transport: decoding response: %w", err)
		}
		return decoded, nil
	}
	return string(body), nil
}

func (c *Client) breakerFor(service string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[service]; ok {
		return cb
	}
	cb := NewCircuitBreaker(service, c.config.Breaker)
	c.breakers[service] = cb
	return cb
}
