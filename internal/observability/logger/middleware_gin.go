package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/harvestprice/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

type MiddlewareConfig struct {
	// Logger defaults to the zap global.
	Logger          *zap.Logger
	Debug           bool
	ErrorClassifier func(err error) (errType string, errCode string)
}

// quietRoutes log at debug level: health checks, and client-side rejections of
// sale observations which arrive in bulk from checkout.
var quietRoutes = map[string]func(status int) bool{
	"/health":  func(int) bool { return true },
	"/metrics": func(int) bool { return true },
	"/api/v1/observations": func(status int) bool {
		return status >= http.StatusBadRequest && status < http.StatusInternalServerError
	},
}

// GinMiddleware assigns a request id and writes one access line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := requestIDFor(c)
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if key := c.GetString("commodity"); key != "" {
			fields = append(fields, zap.String("commodity", key))
		}
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			errType, errCode := cfg.ErrorClassifier(last.Err)
			fields = append(fields, zap.String("error_type", errType), zap.String("error_code", errCode))
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		base := cfg.Logger
		if base == nil {
			base = zap.L()
		}
		WithContext(c.Request.Context(), base).Log(accessLevel(route, status), "http_request", fields...)
	}
}

func requestIDFor(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func accessLevel(route string, status int) zapcore.Level {
	if quiet, ok := quietRoutes[route]; ok && quiet(status) {
		return zapcore.DebugLevel
	}
	if status >= http.StatusInternalServerError {
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}
