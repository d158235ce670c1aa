package catalog

import (
	"context"
	"fmt"
	"sort"

	"restopos-backend/internal/models"

	"github.com/shopspring/decimal"
)

type OptionView struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Surcharge decimal.Decimal `json:"surcharge"`
}

type ModifierView struct {
	ID      uint         `json:"id"`
	Name    string       `json:"name"`
	Options []OptionView `json:"options"`
}

type ProductView struct {
	ID              uint            `json:"id"`
	CategoryID      uint            `json:"category_id"`
	Category        string          `json:"category"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	RequiresKitchen bool            `json:"requires_kitchen"`
	Modifiers       []ModifierView  `json:"modifiers"`
}

// ListActive returns what the POS can sell right now: active products in active
// categories with their active modifier groups and options.
func (r *Repository) ListActive(ctx context.Context, categoryID uint) ([]ProductView, error) {
	db := r.db.WithContext(ctx)

	var categories []models.Category
	if err := db.Where("active = ?", true).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	catNames := make(map[uint]string, len(categories))
	catIDs := make([]uint, 0, len(categories))
	for _, c := range categories {
		if categoryID != 0 && c.ID != categoryID {
			continue
		}
		catNames[c.ID] = c.Name
		catIDs = append(catIDs, c.ID)
	}
	if len(catIDs) == 0 {
		return []ProductView{}, nil
	}

	var products []models.Product
	err := db.Where("active = ? AND category_id IN ?", true, catIDs).
		Order("name asc").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return []ProductView{}, nil
	}

	productIDs := make([]uint, 0, len(products))
	for _, p := range products {
		productIDs = append(productIDs, p.ID)
	}

	var links []models.ProductModifier
	if err := db.Where("product_id IN ?", productIDs).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list product modifiers: %w", err)
	}
	groupIDs := make([]uint, 0, len(links))
	for _, l := range links {
		groupIDs = append(groupIDs, l.ModifierID)
	}

	groups := map[uint]ModifierView{}
	if groupIDs = unique(groupIDs); len(groupIDs) > 0 {
		var mods []models.Modifier
		err := db.Where("id IN ? AND active = ?", groupIDs, true).
			Preload("Options", "active = ?", true).
			Find(&mods).Error
		if err != nil {
			return nil, fmt.Errorf("list modifiers: %w", err)
		}
		for _, m := range mods {
			view := ModifierView{ID: m.ID, Name: m.Name, Options: make([]OptionView, 0, len(m.Options))}
			for _, o := range m.Options {
				view.Options = append(view.Options, OptionView{ID: o.ID, Name: o.Name, Surcharge: o.Surcharge})
			}
			sort.Slice(view.Options, func(i, j int) bool { return view.Options[i].ID < view.Options[j].ID })
			groups[m.ID] = view
		}
	}

	byProduct := map[uint][]ModifierView{}
	for _, l := range links {
		if g, ok := groups[l.ModifierID]; ok {
			byProduct[l.ProductID] = append(byProduct[l.ProductID], g)
		}
	}

	res := make([]ProductView, 0, len(products))
	for _, p := range products {
		mods := byProduct[p.ID]
		if mods == nil {
			mods = []ModifierView{}
		}
		sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
		res = append(res, ProductView{
			ID:              p.ID,
			CategoryID:      p.CategoryID,
			Category:        catNames[p.CategoryID],
			Name:            p.Name,
			Price:           p.Price,
			TaxRate:         p.TaxRate,
			RequiresKitchen: p.RequiresKitchen,
			Modifiers:       mods,
		})
	}
	return res, nil
}
