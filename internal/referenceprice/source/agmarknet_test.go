package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/harvestprice/internal/config"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSource(url string, timeout time.Duration) *Agmarknet {
	cfg := config.Config{
		AppName:    "harvestprice",
		AppVersion: "test",
		Reference: config.ReferenceConfig{
			BaseURL:   url,
			APIKey:    "secret",
			Timeout:   timeout,
			PageLimit: 100,
		},
	}
	return NewAgmarknet(cfg, zap.NewNop())
}

func TestFetchSendsFiltersAndParsesRecords(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","total":2,"records":[
			{"state":"Karnataka","market":"Kolar","commodity":"Tomato","variety":"Local","arrival_date":"15/01/2025","min_price":"1800","max_price":"2600","modal_price":"2200"},
			{"state":"Karnataka","market":"Mysore","commodity":"Tomato","variety":"Hybrid","min_price":2000,"max_price":2800,"modal_price":2400}
		]}`))
	}))
	defer srv.Close()

	records, err := newTestSource(srv.URL, time.Second).Fetch(context.Background(), refdomain.Lookup{
		Commodity: "tomato",
		Region:    "Karnataka",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"secret"}, query["api-key"])
	assert.Equal(t, []string{"json"}, query["format"])
	assert.Equal(t, []string{"100"}, query["limit"])
	assert.Equal(t, []string{"Tomato"}, query["filters[commodity]"])
	assert.Equal(t, []string{"Karnataka"}, query["filters[state]"])
	assert.NotContains(t, query, "filters[district]")

	modal, ok := records[1].ModalPrice.Positive()
	assert.True(t, ok)
	assert.Equal(t, 2400.0, modal)
	assert.Equal(t, "Kolar", records[0].Market)
}

func TestFetchEmptyRecordsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","total":0,"records":[]}`))
	}))
	defer srv.Close()

	records, err := newTestSource(srv.URL, time.Second).Fetch(context.Background(), refdomain.Lookup{Commodity: "okra"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL, time.Second).Fetch(context.Background(), refdomain.Lookup{Commodity: "tomato"})
	assert.ErrorIs(t, err, refdomain.ErrMalformedResponse)
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL, time.Second).Fetch(context.Background(), refdomain.Lookup{Commodity: "tomato"})
	assert.ErrorIs(t, err, refdomain.ErrSourceUnavailable)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL, 50*time.Millisecond).Fetch(context.Background(), refdomain.Lookup{Commodity: "tomato"})
	assert.ErrorIs(t, err, refdomain.ErrSourceUnavailable)
}
