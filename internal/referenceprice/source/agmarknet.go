package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	"github.com/smallbiznis/harvestprice/internal/config"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Agmarknet reads daily mandi prices from the data.gov.in resource API.
type Agmarknet struct {
	client    *resty.Client
	limiter   *rate.Limiter
	log       *zap.Logger
	baseURL   string
	apiKey    string
	pageLimit int
}

type envelope struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Total   int                   `json:"total"`
	Records []refdomain.RawRecord `json:"records"`
}

func NewAgmarknet(cfg config.Config, log *zap.Logger) *Agmarknet {
	timeout := cfg.Reference.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", cfg.AppName+"/"+cfg.AppVersion)

	limit := rate.Inf
	if cfg.Reference.RatePerSecond > 0 {
		limit = rate.Limit(cfg.Reference.RatePerSecond)
	}
	burst := cfg.Reference.Burst
	if burst <= 0 {
		burst = 1
	}

	pageLimit := cfg.Reference.PageLimit
	if pageLimit <= 0 {
		pageLimit = 100
	}

	return &Agmarknet{
		client:    client,
		limiter:   rate.NewLimiter(limit, burst),
		log:       log.Named("referenceprice.agmarknet"),
		baseURL:   strings.TrimSpace(cfg.Reference.BaseURL),
		apiKey:    cfg.Reference.APIKey,
		pageLimit: pageLimit,
	}
}

// Fetch returns the matching records. Zero records is not an error.
func (a *Agmarknet) Fetch(ctx context.Context, lookup refdomain.Lookup) ([]refdomain.RawRecord, error) {
	ctx, span := otel.Tracer("harvestprice/referenceprice").Start(ctx, "agmarknet.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("commodity", lookup.Commodity),
		attribute.String("region", lookup.Region),
	)

	if err := a.limiter.Wait(ctx); err != nil {
		span.SetStatus(codes.Error, "rate limit wait")
		return nil, fmt.Errorf("%w: %w", refdomain.ErrUpstreamRateLimited, err)
	}

	req := a.client.R().
		SetContext(ctx).
		SetQueryParam("api-key", a.apiKey).
		SetQueryParam("format", "json").
		SetQueryParam("limit", strconv.Itoa(a.pageLimit))
	if lookup.Commodity != "" {
		req.SetQueryParam("filters[commodity]", commodity.DisplayName(lookup.Commodity))
	}
	if lookup.Region != "" {
		req.SetQueryParam("filters[state]", lookup.Region)
	}
	if lookup.District != "" {
		req.SetQueryParam("filters[district]", lookup.District)
	}

	start := time.Now()
	resp, err := req.Get(a.baseURL)
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("%w: %w", refdomain.ErrSourceUnavailable, err)
	}
	if resp.IsError() {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("%w: status %d", refdomain.ErrSourceUnavailable, resp.StatusCode())
	}

	var payload envelope
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		span.SetStatus(codes.Error, "decode failed")
		return nil, fmt.Errorf("%w: %v", refdomain.ErrMalformedResponse, err)
	}

	a.log.Debug("fetched reference records",
		zap.String("commodity", lookup.Commodity),
		zap.String("region", lookup.Region),
		zap.Int("records", len(payload.Records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	span.SetAttributes(attribute.Int("records", len(payload.Records)))
	return payload.Records, nil
}
