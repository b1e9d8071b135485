package domain

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is one row of the external dataset. Numeric fields arrive as
// strings, numbers, empty strings or placeholders such as "NR".
type RawRecord struct {
	State       string      `json:"state"`
	District    string      `json:"district"`
	Market      string      `json:"market"`
	Commodity   string      `json:"commodity"`
	Variety     string      `json:"variety"`
	ArrivalDate string      `json:"arrival_date"`
	MinPrice    LooseNumber `json:"min_price"`
	MaxPrice    LooseNumber `json:"max_price"`
	ModalPrice  LooseNumber `json:"modal_price"`
}

// LooseNumber accepts a JSON number or a numeric string. Anything else
// leaves it invalid rather than failing the whole payload.
type LooseNumber struct {
	Value decimal.Decimal
	Valid bool
}

func (n *LooseNumber) UnmarshalJSON(data []byte) error {
	*n = LooseNumber{}
	raw := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(data), `"`)))
	if raw == "" || raw == "null" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// Positive returns the value when it is present and greater than zero.
func (n LooseNumber) Positive() (float64, bool) {
	if !n.Valid || !n.Value.IsPositive() {
		return 0, false
	}
	return n.Value.InexactFloat64(), true
}

func Number(v float64) LooseNumber {
	return LooseNumber{Value: decimal.NewFromFloat(v), Valid: true}
}
