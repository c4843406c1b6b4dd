package extraction

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Item is a purchased item recognised on a receipt
type Item struct {
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Confidence float64
}

// MarshalJSON encodes the price as a JSON number rather than the quoted string decimal uses by default
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string      `json:"name"`
		Quantity   int         `json:"quantity"`
		Price      json.Number `json:"price"`
		Confidence float64     `json:"confidence"`
	}{
		Name:       i.Name,
		Quantity:   i.Quantity,
		Price:      json.Number(i.UnitPrice.StringFixed(2)),
		Confidence: i.Confidence,
	})
}

// RawLine is a normalized receipt line with its position in the OCR text
type RawLine struct {
	Text     string
	Position int
}
