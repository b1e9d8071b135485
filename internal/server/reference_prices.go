package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	refdomain "github.com/smallbiznis/harvestprice/internal/referenceprice/domain"
	"github.com/smallbiznis/harvestprice/internal/signal"
)

const (
	defaultTrendingDays = 7
	maxRefreshBatch     = 50
)

func (s *Server) GetReferencePrice(c *gin.Context) {
	key := commodity.Normalize(c.Query("commodity"))
	if key == "" {
		AbortWithError(c, refdomain.ErrInvalidCommodity)
		return
	}
	c.Set("commodity", key)

	res := s.referenceSvc.GetPrice(c.Request.Context(), refdomain.Lookup{
		Commodity: key,
		Region:    strings.TrimSpace(c.Query("state")),
		District:  strings.TrimSpace(c.Query("district")),
	})

	switch res.State() {
	case signal.StatePresent:
		quote, _ := res.Get()
		c.JSON(http.StatusOK, quote)
	case signal.StateFailed:
		AbortWithError(c, ErrServiceUnavailable)
	default:
		AbortWithError(c, ErrNotFound)
	}
}

func (s *Server) ListTrendingCommodities(c *gin.Context) {
	days, err := intOrDefault(c.Query("days"), defaultTrendingDays)
	if err != nil || days <= 0 {
		AbortWithError(c, refdomain.ErrInvalidWindow)
		return
	}
	limit, err := intOrDefault(c.Query("limit"), 0)
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	items, err := s.referenceSvc.Trending(c.Request.Context(), time.Duration(days)*24*time.Hour, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

type refreshRequest struct {
	Commodities []string `json:"commodities"`
}

// RefreshReferencePrices refreshes the given commodities, or the tracked list
// when none are named.
func (s *Server) RefreshReferencePrices(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	commodities := req.Commodities
	if len(commodities) == 0 {
		commodities = s.cfg.Scheduler.TrackedCommodities
	}
	if len(commodities) > maxRefreshBatch {
		AbortWithError(c, newValidationError("commodities", "invalid_commodities", "too many commodities"))
		return
	}

	results := s.referenceSvc.RefreshBatch(c.Request.Context(), commodities)
	c.JSON(http.StatusOK, gin.H{"data": results})
}
