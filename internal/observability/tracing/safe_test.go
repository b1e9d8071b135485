package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/v1/trends"),
		attribute.String("api_key", "secret"),
		attribute.String("commodity", "tomato"),
	)
	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("api_key"), attr.Key)
	}
}

func TestSafeErrorStripsQuery(t *testing.T) {
	err := SafeError(errors.New(`Get "https://api.example.com/resource?api-key=secret&format=json": timeout`))
	assert.Equal(t, `Get "https://api.example.com/resource": timeout`, err.Error())

	assert.Nil(t, SafeError(nil))
	assert.Equal(t, "plain", SafeError(errors.New("plain")).Error())
}
