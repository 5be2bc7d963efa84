// Package receipt extracts structured line items from uploaded
// receipt images. Extraction and parsing are ports so OCR and model
// backed implementations can be swapped in without touching the
// worker.
package receipt

import "context"

// TextExtractor turns a receipt image into raw text.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// ItemParser turns raw receipt text into a structured receipt.
type ItemParser interface {
	ParseText(ctx context.Context, text string) (*ParsedReceipt, error)
}

// ParsedItem is one extracted line item. Monetary values are decimal
// units, matching the upload API payloads.
type ParsedItem struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

type ParsedReceipt struct {
	MerchantName string       `json:"merchant_name"`
	Date         string       `json:"date"`
	Items        []ParsedItem `json:"items"`
	Subtotal     float64      `json:"subtotal"`
	Tax          float64      `json:"tax"`
	TotalAmount  float64      `json:"total_amount"`
}

// Normalize fills the gaps an extractor may leave: missing quantities
// default to 1, missing totals are derived from quantity and unit
// price, and a missing grand total is the sum of item totals.
func (r *ParsedReceipt) Normalize() {
	for i := range r.Items {
		item := &r.Items[i]
		if item.Description == "" {
			item.Description = "Unknown Item"
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if item.Total == 0 {
			item.Total = float64(item.Quantity) * item.UnitPrice
		}
		if item.UnitPrice == 0 && item.Quantity > 0 {
			item.UnitPrice = item.Total / float64(item.Quantity)
		}
	}
	if r.TotalAmount == 0 {
		for _, item := range r.Items {
			r.TotalAmount += item.Total
		}
	}
}
