// Package cai manages fiscal numbering authorizations: creation, activation and the
// locked read-advance step the invoice issuer runs for every invoice.
package cai

import (
	"context"
	"fmt"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxCorrelative is the largest number the 8-digit correlative field can hold.
const MaxCorrelative = 99_999_999

var (
	ErrNotActive        = apperr.AdminConflict("cai_not_active", "No hay un CAI activo; contacte al administrador")
	ErrMultipleActive   = apperr.AdminConflict("cai_multiple_active", "Hay más de un CAI activo; contacte al administrador")
	ErrExpired          = apperr.AdminConflict("cai_expired", "El CAI activo está vencido; contacte al administrador")
	ErrExhausted        = apperr.AdminConflict("cai_exhausted", "El rango del CAI activo se agotó; contacte al administrador")
	ErrOutOfRange       = apperr.AdminConflict("cai_out_of_range", "El correlativo del CAI está fuera del rango autorizado")
	ErrConcurrentUpdate = apperr.Retryable("cai_concurrent_update", "Otra factura tomó el correlativo, intente de nuevo")
	ErrNotFound         = apperr.NotFound("cai_not_found", "CAI no encontrado")
	ErrCodeTaken        = apperr.Conflict("cai_code_taken", "Ya existe un CAI con ese código")
	ErrInvalid          = apperr.Validation("cai_invalid", "Datos del CAI inválidos")
)

// LockActive returns the single active authorization, row-locked until tx ends.
func LockActive(ctx context.Context, tx *gorm.DB) (*models.CAI, error) {
	var active []models.CAI
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("active = ?", true).
		Order("id ASC").
		Limit(2).
		Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("lock active cai: %w", err)
	}

	switch len(active) {
	case 0:
		return nil, ErrNotActive
	case 1:
		return &active[0], nil
	default:
		return nil, ErrMultipleActive.WithDetails(map[string]any{"cai_ids": []uint{active[0].ID, active[1].ID}})
	}
}

// NextCorrelative validates c against businessDate and returns current+1.
func NextCorrelative(c *models.CAI, businessDate string) (int64, error) {
	if c.ExpiresOn < businessDate {
		return 0, ErrExpired.WithDetails(map[string]any{"cai_id": c.ID, "expires_on": c.ExpiresOn})
	}
	next := c.CurrentCorrelative + 1
	if next > c.RangeTo {
		return 0, ErrExhausted.WithDetails(map[string]any{"cai_id": c.ID, "range_to": c.RangeTo})
	}
	if next < c.RangeFrom {
		return 0, ErrOutOfRange.WithDetails(map[string]any{
			"cai_id":     c.ID,
			"next":       next,
			"range_from": c.RangeFrom,
		})
	}
	return next, nil
}

// Advance moves current_correlative from its locked value to next. The guard on the
// old value turns any unnoticed concurrent writer into a retryable error.
func Advance(ctx context.Context, tx *gorm.DB, c *models.CAI, next int64) error {
	res := tx.WithContext(ctx).Model(&models.CAI{}).
		Where("id = ? AND current_correlative = ?", c.ID, c.CurrentCorrelative).
		Update("current_correlative", next)
	if res.Error != nil {
		return fmt.Errorf("advance cai %d: %w", c.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrConcurrentUpdate
	}
	c.CurrentCorrelative = next
	return nil
}
