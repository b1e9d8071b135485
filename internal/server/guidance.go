package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	recdomain "github.com/smallbiznis/harvestprice/internal/recommendation/domain"
	trenddomain "github.com/smallbiznis/harvestprice/internal/trend/domain"
)

func (s *Server) GetRecommendation(c *gin.Context) {
	c.Set("commodity", commodity.Normalize(c.Query("commodity")))

	price, err := parseOptionalFloat(c.Query("current_price"))
	if err != nil || price == nil {
		AbortWithError(c, recdomain.ErrInvalidPrice)
		return
	}

	rec, err := s.recommendSvc.Recommend(c.Request.Context(), c.Query("commodity"), *price)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) GetTrend(c *gin.Context) {
	c.Set("commodity", commodity.Normalize(c.Query("commodity")))

	days, err := intOrDefault(c.Query("days"), trenddomain.DefaultWindowDays)
	if err != nil || days <= 0 {
		AbortWithError(c, trenddomain.ErrInvalidWindow)
		return
	}

	tr, err := s.trendSvc.Compute(c.Request.Context(), c.Query("commodity"), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tr)
}

func (s *Server) GetPriceRange(c *gin.Context) {
	c.Set("commodity", commodity.Normalize(c.Query("commodity")))

	rng, err := s.recommendSvc.PriceRange(c.Request.Context(), c.Query("commodity"))
	if err != nil {
		abortMarketError(c, err)
		return
	}

	c.JSON(http.StatusOK, rng)
}

type validatePriceRequest struct {
	Commodity string   `json:"commodity"`
	Price     *float64 `json:"price"`
	Tolerance *float64 `json:"tolerance"`
}

// ValidatePrice checks a seller's price against the widened market range.
func (s *Server) ValidatePrice(c *gin.Context) {
	var req validatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("commodity", commodity.Normalize(req.Commodity))
	if req.Price == nil {
		AbortWithError(c, recdomain.ErrInvalidPrice)
		return
	}
	tolerance := recdomain.DefaultTolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}

	validation, err := s.recommendSvc.ValidatePrice(c.Request.Context(), req.Commodity, *req.Price, tolerance)
	if err != nil {
		abortMarketError(c, err)
		return
	}

	c.JSON(http.StatusOK, validation)
}

// abortMarketError reports a missing reference price as 404 and any upstream
// failure as 503.
func abortMarketError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recdomain.ErrNoMarketPrice):
		AbortWithError(c, ErrNotFound)
	case matchesAny(err, inputErrors):
		AbortWithError(c, err)
	default:
		AbortWithError(c, ErrServiceUnavailable)
	}
}
