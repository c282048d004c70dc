package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTraceID(ctx, "trace-2")
	ctx = WithSpanID(ctx, "span-3")
	ctx = WithUserID(ctx, "user-4")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "trace-2", GetTraceID(ctx))
	assert.Equal(t, "span-3", GetSpanID(ctx))
	assert.Equal(t, "user-4", GetUserID(ctx))
}

func TestContextIDsDefaultEmpty(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
	assert.Empty(t, GetUserID(ctx))
}
