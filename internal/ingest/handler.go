package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/harvestprice/internal/commodity"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	"go.uber.org/zap"
)

var ErrMalformedEvent = errors.New("malformed_sale_event")

// SaleEvent is one completed order line published by the marketplace.
// Price and quantity arrive either as JSON numbers or numeric strings.
type SaleEvent struct {
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Commodity string          `json:"commodity"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Region    string          `json:"region"`
}

type Handler struct {
	log     *zap.Logger
	history historydomain.Service
}

func NewHandler(log *zap.Logger, history historydomain.Service) *Handler {
	return &Handler{log: log.Named("ingest.handler"), history: history}
}

// Handle records the sale carried by msg.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	event, err := decodeSaleEvent(msg.Value)
	if err != nil {
		return err
	}

	h.history.Record(ctx, historydomain.RecordRequest{
		ProductRef: event.ProductID,
		Commodity:  event.Commodity,
		Price:      event.Price.InexactFloat64(),
		Quantity:   event.Quantity.InexactFloat64(),
		Region:     event.Region,
		Channel:    historydomain.ChannelKafka,
	})

	h.log.Debug("sale recorded",
		zap.String("order_id", event.OrderID),
		zap.String("commodity", commodity.Normalize(event.Commodity)),
		zap.Int64("offset", msg.Offset),
	)
	return nil
}

func decodeSaleEvent(raw []byte) (SaleEvent, error) {
	var event SaleEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return SaleEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if commodity.Normalize(event.Commodity) == "" {
		return SaleEvent{}, fmt.Errorf("%w: missing commodity", ErrMalformedEvent)
	}
	if !event.Price.IsPositive() {
		return SaleEvent{}, fmt.Errorf("%w: price must be positive", ErrMalformedEvent)
	}
	if !event.Quantity.IsPositive() {
		return SaleEvent{}, fmt.Errorf("%w: quantity must be positive", ErrMalformedEvent)
	}
	return event, nil
}
