package invoicing

import (
	"fmt"
	"strings"

	"restopos-backend/internal/models"
	"restopos-backend/internal/money"

	"github.com/shopspring/decimal"
)

// FormatDocumentNumber renders the fiscal number as EEE-PPP-TT-CCCCCCCC.
func FormatDocumentNumber(establishment, emissionPoint, documentType int, correlative int64) string {
	return fmt.Sprintf("%03d-%03d-%02d-%08d", establishment, emissionPoint, documentType, correlative)
}

type PaymentInput struct {
	Method    models.PaymentMethod `json:"method"`
	Amount    decimal.Decimal      `json:"amount"`
	Tendered  *decimal.Decimal     `json:"tendered"`
	Reference *string              `json:"reference"`
}

// buildPayments validates the instruments and computes cash change. It returns the
// rows to insert, their rounded sum and the total change owed. An empty list is only
// rejected once the order total is known.
func buildPayments(in []PaymentInput) ([]models.Payment, decimal.Decimal, decimal.Decimal, error) {
	payments := make([]models.Payment, 0, len(in))
	sum, change := decimal.Zero, decimal.Zero
	for i, p := range in {
		if !p.Method.Valid() {
			return nil, decimal.Zero, decimal.Zero, ErrInvalidMethod.WithDetails(map[string]any{"index": i, "method": p.Method})
		}
		amount := money.Round(p.Amount)
		if !amount.IsPositive() {
			return nil, decimal.Zero, decimal.Zero, ErrInvalidAmount.WithDetails(map[string]any{"index": i})
		}

		row := models.Payment{Method: p.Method, Amount: amount, Reference: trimRef(p.Reference)}
		if p.Method == models.PaymentMethodCash {
			tendered := amount
			if p.Tendered != nil {
				tendered = money.Round(*p.Tendered)
			}
			if tendered.LessThan(amount) {
				return nil, decimal.Zero, decimal.Zero, ErrInsufficientTendered.WithDetails(map[string]any{
					"index":    i,
					"amount":   amount.StringFixed(2),
					"tendered": tendered.StringFixed(2),
				})
			}
			given := money.Round(tendered.Sub(amount))
			row.Tendered = &tendered
			row.Change = &given
			change = money.Add(change, given)
		}
		sum = money.Add(sum, amount)
		payments = append(payments, row)
	}
	return payments, sum, change, nil
}

func trimRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	v := strings.TrimSpace(*ref)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeTaxID accepts an RTN written with or without separators and returns its
// 14 digits. An empty value means a final-consumer invoice.
func normalizeTaxID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", ErrInvalidTaxID
		}
	}
	if b.Len() != 14 {
		return "", ErrInvalidTaxID
	}
	return b.String(), nil
}
