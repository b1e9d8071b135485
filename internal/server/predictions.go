package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	predictiondomain "github.com/smallbiznis/harvestprice/internal/prediction/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
)

const maxBatchItems = 100

type predictionResponse struct {
	Commodity          string                 `json:"commodity"`
	Region             string                 `json:"region,omitempty"`
	PredictedPrice     *float64               `json:"predicted_price"`
	Basis              predictiondomain.Basis `json:"basis,omitempty"`
	Observations       int                    `json:"observations"`
	SeasonalMultiplier float64                `json:"seasonal_multiplier,omitempty"`
	State              signal.State           `json:"state"`
}

func (s *Server) GetPrediction(c *gin.Context) {
	key := commodity.Normalize(c.Query("commodity"))
	if key == "" {
		AbortWithError(c, predictiondomain.ErrInvalidCommodity)
		return
	}
	c.Set("commodity", key)
	region := strings.TrimSpace(c.Query("region"))

	res := s.predictionSvc.Predict(c.Request.Context(), key, region)
	out := predictionResponse{
		Commodity: key,
		Region:    region,
		State:     res.State(),
	}
	if p, ok := res.Get(); ok {
		price := p.Price
		out.PredictedPrice = &price
		out.Basis = p.Basis
		out.Observations = p.Observations
		out.SeasonalMultiplier = p.SeasonalMultiplier
	}

	c.JSON(http.StatusOK, out)
}

type batchPredictRequest struct {
	Items []predictiondomain.BatchItem `json:"items"`
}

func (s *Server) BatchPredict(c *gin.Context) {
	var req batchPredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchItems {
		AbortWithError(c, newValidationError("items", "invalid_items", "items must hold between 1 and 100 entries"))
		return
	}
	for _, item := range req.Items {
		if commodity.Normalize(item.Commodity) == "" {
			AbortWithError(c, predictiondomain.ErrInvalidCommodity)
			return
		}
	}

	out := s.predictionSvc.BatchPredict(c.Request.Context(), req.Items)
	c.JSON(http.StatusOK, gin.H{"data": out})
}
