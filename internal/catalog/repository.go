// Package catalog reads the menu: products, their modifier groups and options.
// Orders validate against it; the POS screen lists it. Nothing here writes.
package catalog

import (
	"context"
	"fmt"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/models"

	"gorm.io/gorm"
)

var ErrStale = apperr.Conflict("catalog_stale", "El menú cambió; actualice la pantalla e intente de nuevo")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Snapshot is the slice of the catalog referenced by one request, loaded in bulk.
type Snapshot struct {
	products map[uint]models.Product
	options  map[uint]models.ModifierOption
	groups   map[uint]models.Modifier
	links    map[uint]map[uint]struct{}
}

// Load reads the referenced products and options with tx, three queries regardless of request size.
func (r *Repository) Load(ctx context.Context, tx *gorm.DB, productIDs, optionIDs []uint) (*Snapshot, error) {
	if tx == nil {
		tx = r.db
	}
	tx = tx.WithContext(ctx)

	s := &Snapshot{
		products: make(map[uint]models.Product, len(productIDs)),
		options:  make(map[uint]models.ModifierOption, len(optionIDs)),
		groups:   map[uint]models.Modifier{},
		links:    map[uint]map[uint]struct{}{},
	}

	productIDs = unique(productIDs)
	if len(productIDs) > 0 {
		var products []models.Product
		if err := tx.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		for _, p := range products {
			s.products[p.ID] = p
		}

		var links []models.ProductModifier
		if err := tx.Where("product_id IN ?", productIDs).Find(&links).Error; err != nil {
			return nil, fmt.Errorf("load product modifiers: %w", err)
		}
		for _, l := range links {
			if s.links[l.ProductID] == nil {
				s.links[l.ProductID] = map[uint]struct{}{}
			}
			s.links[l.ProductID][l.ModifierID] = struct{}{}
		}
	}

	optionIDs = unique(optionIDs)
	if len(optionIDs) > 0 {
		var options []models.ModifierOption
		if err := tx.Where("id IN ?", optionIDs).Find(&options).Error; err != nil {
			return nil, fmt.Errorf("load modifier options: %w", err)
		}
		groupIDs := make([]uint, 0, len(options))
		for _, o := range options {
			s.options[o.ID] = o
			groupIDs = append(groupIDs, o.ModifierID)
		}

		if groupIDs = unique(groupIDs); len(groupIDs) > 0 {
			var groups []models.Modifier
			if err := tx.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
				return nil, fmt.Errorf("load modifiers: %w", err)
			}
			for _, g := range groups {
				s.groups[g.ID] = g
			}
		}
	}

	return s, nil
}

// Product returns an active product or ErrStale.
func (s *Snapshot) Product(id uint) (models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, ErrStale.WithDetails(map[string]any{"product_id": id, "reason": "not_found"})
	}
	if !p.Active {
		return models.Product{}, ErrStale.WithDetails(map[string]any{"product_id": id, "reason": "inactive"})
	}
	return p, nil
}

// Option returns an active option whose active group is linked to productID, or ErrStale.
func (s *Snapshot) Option(productID, optionID uint) (models.ModifierOption, models.Modifier, error) {
	stale := func(reason string) error {
		return ErrStale.WithDetails(map[string]any{
			"product_id": productID,
			"option_id":  optionID,
			"reason":     reason,
		})
	}

	o, ok := s.options[optionID]
	if !ok {
		return models.ModifierOption{}, models.Modifier{}, stale("not_found")
	}
	if !o.Active {
		return models.ModifierOption{}, models.Modifier{}, stale("inactive")
	}
	g, ok := s.groups[o.ModifierID]
	if !ok || !g.Active {
		return models.ModifierOption{}, models.Modifier{}, stale("group_inactive")
	}
	if _, linked := s.links[productID][g.ID]; !linked {
		return models.ModifierOption{}, models.Modifier{}, stale("group_not_allowed")
	}
	return o, g, nil
}

func unique(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
