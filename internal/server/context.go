package server

import (
	"context"
	"time"
)

const detachedTimeout = 10 * time.Second

// detachedContext keeps request-scoped values but outlives the request.
func detachedContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), detachedTimeout)
}
