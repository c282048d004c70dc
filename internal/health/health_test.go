package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestLiveness(t *testing.T) {
	r := NewRegistry("1.0.0")
	resp := r.Liveness(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestReadinessRunsCriticalOnly(t *testing.T) {
	r := NewRegistry("test")
	r.Register(NewPingChecker("db", &fakePinger{}, true))
	r.Register(NewPingChecker("search", &fakePinger{err: errors.New("down")}, false))

	resp := r.Readiness(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
	assert.Equal(t, "db", resp.Checks[0].Name)
}

func TestHealthAggregation(t *testing.T) {
	t.Run("non-critical failure degrades", func(t *testing.T) {
		r := NewRegistry("test")
		r.Register(NewPingChecker("db", &fakePinger{}, true))
		r.Register(NewPingChecker("cache", &fakePinger{err: errors.New("refused")}, false))

		resp := r.Health(context.Background())
		assert.Equal(t, StatusDegraded, resp.Status)
		assert.Len(t, resp.Checks, 2)
	})

	t.Run("critical failure is unhealthy", func(t *testing.T) {
		r := NewRegistry("test")
		r.Register(NewPingChecker("db", &fakePinger{err: errors.New("refused")}, true))

		resp := r.Health(context.Background())
		assert.Equal(t, StatusUnhealthy, resp.Status)
		assert.Equal(t, "refused", resp.Checks[0].Message)
	})
}

func TestCheckFunc(t *testing.T) {
	r := NewRegistry("test")
	r.Register(NewCheckFunc("custom", true, func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded, Message: "slow"}
	}))

	resp := r.Health(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "custom", resp.Checks[0].Name)
}
