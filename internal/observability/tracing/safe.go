package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var allowedAttributeKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"commodity":               {},
	"region":                  {},
	"source":                  {},
	"job":                     {},
}

// SafeAttributes drops attributes that could carry user input or secrets.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError strips query strings from error text; upstream URLs embed the API key.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if idx := strings.Index(msg, "?"); idx >= 0 {
		end := strings.IndexAny(msg[idx:], " \"")
		if end < 0 {
			msg = msg[:idx]
		} else {
			msg = msg[:idx] + msg[idx+end:]
		}
	}
	return errors.New(msg)
}

// ExtractContext pulls trace headers from carrier into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
