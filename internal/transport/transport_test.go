package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-lang/lattice/internal/ast"
)

func TestInvokeURLTarget(t *testing.T) {
	var got *http.Request
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "id": 7}`))
	}))
	defer srv.Close()

	c := New(Config{})
	inv := &ast.Invoke{
		Name:    "createUser",
		URL:     srv.URL + "/users",
		Method:  "POST",
		Headers: map[string]string{"X-Request-Source": "lattice"},
	}
	out, err := c.Invoke(context.Background(), inv, map[string]any{"name": "ada"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/users", got.URL.Path)
	assert.Equal(t, "lattice", got.Header.Get("X-Request-Source"))
	assert.Equal(t, map[string]any{"name": "ada"}, gotBody)
	assert.Equal(t, map[string]any{"ok": true, "id": float64(7)}, out)
}

func TestInvokeGETEncodesQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(Config{})
	inv := &ast.Invoke{Name: "listUsers", URL: srv.URL + "/users", Method: "GET"}
	_, err := c.Invoke(context.Background(), inv, map[string]any{"limit": float64(10), "active": true})
	require.NoError(t, err)

	assert.Equal(t, "10", got.URL.Query().Get("limit"))
	assert.Equal(t, "true", got.URL.Query().Get("active"))
}

func TestInvokeDefaultMethod(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{})
	_, err := c.Invoke(context.Background(), &ast.Invoke{Name: "a", URL: srv.URL}, nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), &ast.Invoke{Name: "b", URL: srv.URL}, map[string]any{"x": 1})
	require.NoError(t, err)

	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, methods)
}

func TestInvokeEndpointAndServiceTargets(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:  srv.URL,
		Services: map[string]string{"billing": srv.URL + "/billing"},
	})

	_, err := c.Invoke(context.Background(), &ast.Invoke{Name: "a", Endpoint: "/orders"}, nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), &ast.Invoke{Name: "b", Service: "billing"}, nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), &ast.Invoke{Name: "c", Service: "unknown"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")

	assert.Equal(t, []string{"/orders", "/billing"}, paths)
}

func TestInvokeAuth(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{
		BearerTokens:  map[string]string{"default": "tok123"},
		BasicUser:     "ada",
		BasicPassword: "pw",
	})

	_, err := c.Invoke(context.Background(), &ast.Invoke{Name: "a", URL: srv.URL, Auth: "bearer"}, nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), &ast.Invoke{Name: "b", URL: srv.URL, Auth: "basic"}, nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), &ast.Invoke{Name: "c", URL: srv.URL, Auth: "mtls"}, nil)
	require.Error(t, err)

	assert.Equal(t, "Bearer tok123", auth[0])
	assert.Contains(t, auth[1], "Basic ")
}

func TestInvokeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{})
	_, err := c.Invoke(context.Background(), &ast.Invoke{Name: "a", URL: srv.URL}, nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.False(t, IsRetryable(err))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Breaker: BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}})
	inv := &ast.Invoke{Name: "a", URL: srv.URL}

	for i := 0; i < 2; i++ {
		_, err := c.Invoke(context.Background(), inv, nil)
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
	}

	_, err := c.Invoke(context.Background(), inv, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestPostJSONRetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"done": true}`))
	}))
	defer srv.Close()

	c := New(Config{Retry: RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}})
	out, err := c.PostJSON(context.Background(), "svc", srv.URL, nil, map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"done": true}, out)
	assert.Equal(t, 3, calls)
}

func TestRetryerStopsOnTerminalError(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond})
	calls := 0
	_, err := DoWithResult(context.Background(), r, func(ctx context.Context) (any, error) {
		calls++
		return nil, &HTTPError{StatusCode: http.StatusBadRequest}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryerExhaustsBudget(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})
	calls := 0
	_, err := DoWithResult(context.Background(), r, func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker("svc", BreakerConfig{
		FailureThreshold:  2,
		Cooldown:          10 * time.Millisecond,
		HalfOpenSuccesses: 1,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("svc", BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}
