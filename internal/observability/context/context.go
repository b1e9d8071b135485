package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type jobRunKey struct{}

// WithRequestID stores the inbound request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithJobRun tags work started by the scheduler with its job name and run id.
func WithJobRun(ctx context.Context, job, runID string) context.Context {
	return context.WithValue(ctx, jobRunKey{}, [2]string{strings.TrimSpace(job), strings.TrimSpace(runID)})
}

func JobRunFromContext(ctx context.Context) (job, runID string) {
	if ctx == nil {
		return "", ""
	}
	v, ok := ctx.Value(jobRunKey{}).([2]string)
	if !ok {
		return "", ""
	}
	return v[0], v[1]
}
