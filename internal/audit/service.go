// Package audit records who did what to financial entities.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"restopos-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntityInvoice     = "invoice"
	EntityCashSession = "cash_session"
	EntityCAI         = "cai"
	EntityOrder       = "order"
)

type LogOptions struct {
	Actor       models.Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Data        any
}

// WriteLog inserts the record with tx so it commits or rolls back with the operation it describes.
func WriteLog(ctx context.Context, tx *gorm.DB, opts LogOptions) error {
	// jsonb rejects an empty string; store JSON null instead.
	data := datatypes.JSON("null")
	if opts.Data != nil {
		b, err := json.Marshal(opts.Data)
		if err != nil {
			return fmt.Errorf("encode audit data: %w", err)
		}
		data = datatypes.JSON(b)
	}

	log := models.AuditLog{
		UserID:      opts.Actor.ID,
		UserName:    opts.Actor.Name,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		Data:        data,
	}
	if err := tx.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

type Filter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Limit      int
}

func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
