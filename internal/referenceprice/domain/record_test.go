package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecordLooseNumbers(t *testing.T) {
	payload := `{"commodity":"Tomato","variety":"Hybrid","min_price":"1000","max_price":2000.5,"modal_price":"NR"}`

	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	v, ok := rec.MinPrice.Positive()
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)

	v, ok = rec.MaxPrice.Positive()
	assert.True(t, ok)
	assert.Equal(t, 2000.5, v)

	_, ok = rec.ModalPrice.Positive()
	assert.False(t, ok)
}

func TestLooseNumberRejectsNonPositive(t *testing.T) {
	for _, raw := range []string{`"0"`, `-5`, `""`, `null`} {
		var n LooseNumber
		require.NoError(t, json.Unmarshal([]byte(raw), &n), raw)
		_, ok := n.Positive()
		assert.False(t, ok, raw)
	}
}
