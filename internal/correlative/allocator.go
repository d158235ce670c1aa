// Package correlative hands out per-business-date order sequence numbers.
package correlative

import (
	"context"
	"fmt"
	"strings"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCodeConflict = apperr.Retryable("order_code_conflict", "Otra orden tomó el mismo correlativo, intente de nuevo")

type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next increments the day's counter inside tx and returns the new value. The UPDATE
// row-locks the counter until tx ends, so concurrent callers for the same date queue
// behind each other, and a rollback gives the number back.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, businessDate string) (int, error) {
	tx = tx.WithContext(ctx)

	row := models.OrderCorrelative{BusinessDate: businessDate, LastNumber: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("ensure correlative row %s: %w", businessDate, err)
	}

	res := tx.Model(&models.OrderCorrelative{}).
		Where("business_date = ?", businessDate).
		Update("last_number", gorm.Expr("last_number + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("increment correlative %s: %w", businessDate, res.Error)
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("increment correlative %s: %d rows affected", businessDate, res.RowsAffected)
	}

	var next int
	err := tx.Model(&models.OrderCorrelative{}).
		Where("business_date = ?", businessDate).
		Select("last_number").
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("read correlative %s: %w", businessDate, err)
	}
	return next, nil
}

// OrderCode renders ORD-YYYYMMDD-NNNN.
func OrderCode(businessDate string, sequence int) string {
	return fmt.Sprintf("ORD-%s-%04d", strings.ReplaceAll(businessDate, "-", ""), sequence)
}
