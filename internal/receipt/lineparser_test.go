package receipt

import (
	"context"
	"testing"
)

func TestParseTextExtractsItems(t *testing.T) {
	text := `TRATTORIA DA MARIO
2024-03-12
2 x Margherita    13.00
Tiramisu           5.50
Acqua              2.00
Subtotal          20.50
Tax                2.05
Total             22.55
`

	got, err := NewLineParser().ParseText(context.Background(), text)
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}

	if got.MerchantName != "TRATTORIA DA MARIO" {
		t.Errorf("MerchantName = %q", got.MerchantName)
	}
	if got.Date != "2024-03-12" {
		t.Errorf("Date = %q", got.Date)
	}
	if len(got.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(got.Items))
	}

	first := got.Items[0]
	if first.Description != "Margherita" || first.Quantity != 2 || first.Total != 13.00 {
		t.Errorf("first item = %+v", first)
	}
	if first.UnitPrice != 6.50 {
		t.Errorf("first item unit price = %v, want 6.50", first.UnitPrice)
	}

	if got.Subtotal != 20.50 || got.Tax != 2.05 || got.TotalAmount != 22.55 {
		t.Errorf("totals = %v / %v / %v", got.Subtotal, got.Tax, got.TotalAmount)
	}
}

func TestParseTextCommaDecimals(t *testing.T) {
	got, err := NewLineParser().ParseText(context.Background(), "Caffè  1,20\n")
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Total != 1.20 {
		t.Errorf("items = %+v", got.Items)
	}
}

func TestParseTextNoTotalLine(t *testing.T) {
	got, err := NewLineParser().ParseText(context.Background(), "Pane 2.00\nLatte 1.50\n")
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if got.TotalAmount != 3.50 {
		t.Errorf("TotalAmount = %v, want sum of items 3.50", got.TotalAmount)
	}
}

func TestParseTextEmpty(t *testing.T) {
	got, err := NewLineParser().ParseText(context.Background(), "")
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if len(got.Items) != 0 || got.TotalAmount != 0 {
		t.Errorf("ParseText(empty) = %+v", got)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	r := &ParsedReceipt{
		Items: []ParsedItem{
			{UnitPrice: 2.50, Quantity: 2},
			{Description: "Water", Total: 1.00},
		},
	}
	r.Normalize()

	if r.Items[0].Description != "Unknown Item" {
		t.Errorf("missing description = %q", r.Items[0].Description)
	}
	if r.Items[0].Total != 5.00 {
		t.Errorf("derived total = %v, want 5.00", r.Items[0].Total)
	}
	if r.Items[1].Quantity != 1 || r.Items[1].UnitPrice != 1.00 {
		t.Errorf("second item = %+v", r.Items[1])
	}
	if r.TotalAmount != 6.00 {
		t.Errorf("TotalAmount = %v, want 6.00", r.TotalAmount)
	}
}
