package orders

import (
	"strings"

	"restopos-backend/internal/catalog"
	"restopos-backend/internal/models"
	"restopos-backend/internal/money"

	"github.com/shopspring/decimal"
)

type ItemInput struct {
	ProductID uint   `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
	OptionIDs []uint `json:"option_ids"`
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for i := range items {
		it := &items[i]
		it.Notes = strings.TrimSpace(it.Notes)
		if it.ProductID == 0 {
			return ErrInvalidProduct.WithDetails(map[string]any{"item": i})
		}
		if it.Quantity <= 0 {
			return ErrInvalidQuantity.WithDetails(map[string]any{"item": i, "quantity": it.Quantity})
		}
		seen := make(map[uint]struct{}, len(it.OptionIDs))
		for _, id := range it.OptionIDs {
			if _, dup := seen[id]; dup {
				return ErrRepeatedOption.WithDetails(map[string]any{"item": i, "option_id": id})
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

func referencedIDs(items []ItemInput) (products, options []uint) {
	for _, it := range items {
		products = append(products, it.ProductID)
		options = append(options, it.OptionIDs...)
	}
	return products, options
}

// priced is the result of snapshotting and pricing a batch of items.
type priced struct {
	lines    []models.OrderItem
	subtotal decimal.Decimal
	kitchen  bool
}

// priceItems copies names and prices from snap into new lines and totals them.
// line_total = (unit_price + Σ surcharges) × quantity, rounded to cents at every step.
func priceItems(snap *catalog.Snapshot, items []ItemInput) (priced, error) {
	out := priced{lines: make([]models.OrderItem, 0, len(items)), subtotal: decimal.Zero}

	for _, it := range items {
		product, err := snap.Product(it.ProductID)
		if err != nil {
			return priced{}, err
		}

		unit := money.Round(product.Price)
		opts := make([]models.OrderItemOption, 0, len(it.OptionIDs))
		for _, optID := range it.OptionIDs {
			opt, group, err := snap.Option(product.ID, optID)
			if err != nil {
				return priced{}, err
			}
			surcharge := money.Round(opt.Surcharge)
			unit = money.Add(unit, surcharge)
			opts = append(opts, models.OrderItemOption{
				ModifierID: group.ID,
				OptionID:   opt.ID,
				OptionName: opt.Name,
				Surcharge:  surcharge,
			})
		}

		lineTotal := money.Round(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
		out.subtotal = money.Add(out.subtotal, lineTotal)
		out.kitchen = out.kitchen || product.RequiresKitchen

		out.lines = append(out.lines, models.OrderItem{
			ProductID:       product.ID,
			ProductName:     product.Name,
			UnitPrice:       money.Round(product.Price),
			TaxRate:         product.TaxRate,
			RequiresKitchen: product.RequiresKitchen,
			Quantity:        it.Quantity,
			Notes:           it.Notes,
			LineTotal:       lineTotal,
			Options:         opts,
		})
	}
	return out, nil
}

// initialStatus is ready when no line needs the kitchen.
func initialStatus(needsKitchen bool) models.OrderStatus {
	if needsKitchen {
		return models.OrderStatusNew
	}
	return models.OrderStatusReady
}
