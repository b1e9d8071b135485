package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	assert.Equal(t, "", RequestIDFromContext(WithRequestID(context.Background(), "  ")))
}

func TestJobRun(t *testing.T) {
	job, run := JobRunFromContext(context.Background())
	assert.Empty(t, job)
	assert.Empty(t, run)

	ctx := WithJobRun(context.Background(), "refresh_reference_prices", "01HZ")
	job, run = JobRunFromContext(ctx)
	assert.Equal(t, "refresh_reference_prices", job)
	assert.Equal(t, "01HZ", run)
}
