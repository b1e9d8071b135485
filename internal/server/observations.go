package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
)

// RecordObservation appends a completed-sale price. The write is detached
// from the request so a slow store never holds up checkout.
func (s *Server) RecordObservation(c *gin.Context) {
	var req historydomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	key := commodity.Normalize(req.Commodity)
	if key == "" {
		AbortWithError(c, historydomain.ErrInvalidCommodity)
		return
	}
	if !(req.Price > 0) {
		AbortWithError(c, newValidationError("price", "invalid_price", "price must be positive"))
		return
	}
	if !(req.Quantity > 0) {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "quantity must be positive"))
		return
	}
	c.Set("commodity", key)

	req.Channel = historydomain.ChannelHTTP
	ctx, cancel := detachedContext(c.Request.Context())
	go func() {
		defer cancel()
		s.historySvc.Record(ctx, req)
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "commodity": key})
}
