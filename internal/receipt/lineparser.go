package receipt

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"splitperfect/internal/core"
)

// LineParser is a heuristic ItemParser for plain receipt text. Each
// line ending in a price becomes an item, with an optional leading
// "<qty> x <unit>" marker. Subtotal, tax and total lines are picked up
// by keyword.
type LineParser struct{}

func NewLineParser() *LineParser { return &LineParser{} }

var (
	priceRe    = regexp.MustCompile(`(\d+[.,]\d{2})\s*$`)
	quantityRe = regexp.MustCompile(`^(\d+)\s*[xX]\s+`)
	dateRe     = regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`)
)

func (p *LineParser) ParseText(_ context.Context, text string) (*ParsedReceipt, error) {
	out := &ParsedReceipt{}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if out.Date == "" {
			if match := dateRe.FindString(line); match != "" {
				out.Date = match
			}
		}

		priceMatch := priceRe.FindStringSubmatch(line)
		if priceMatch == nil {
			// The first line without a price is the merchant header.
			if out.MerchantName == "" && len(out.Items) == 0 && !dateRe.MatchString(line) {
				out.MerchantName = line
			}
			continue
		}

		amount := parsePrice(priceMatch[1])
		label := strings.TrimSpace(strings.TrimSuffix(line, priceMatch[0]))

		switch keyword(label) {
		case "subtotal":
			out.Subtotal = amount
			continue
		case "tax":
			out.Tax = amount
			continue
		case "total":
			out.TotalAmount = amount
			continue
		}

		item := ParsedItem{Description: label, Quantity: 1, Total: amount}
		if qtyMatch := quantityRe.FindStringSubmatch(label); qtyMatch != nil {
			if qty, err := strconv.ParseInt(qtyMatch[1], 10, 64); err == nil && qty > 0 {
				item.Quantity = qty
				item.Description = strings.TrimSpace(label[len(qtyMatch[0]):])
			}
		}
		out.Items = append(out.Items, item)
	}

	out.Normalize()
	return out, nil
}

func parsePrice(s string) float64 {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0
	}
	return core.Money{Cents: cents}.Decimal()
}

func keyword(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "subtotal"):
		return "subtotal"
	case strings.Contains(l, "tax"), strings.Contains(l, "iva"), strings.Contains(l, "vat"):
		return "tax"
	case strings.Contains(l, "total"):
		return "total"
	}
	return ""
}

// PlainTextExtractor treats the uploaded blob as UTF-8 text. It stands
// in for an OCR backend in development and tests.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor { return &PlainTextExtractor{} }

func (PlainTextExtractor) ExtractText(_ context.Context, image []byte) (string, error) {
	return string(image), nil
}
