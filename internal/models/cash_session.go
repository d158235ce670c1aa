package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CashSessionStatus string

const (
	CashSessionOpen   CashSessionStatus = "open"
	CashSessionClosed CashSessionStatus = "closed"
)

type CashSession struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	OperatorID       uint              `gorm:"index;not null" json:"operator_id"`
	BusinessDate     string            `gorm:"size:10;not null;index" json:"business_date"`
	OpeningAmount    decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"opening_amount"`
	Status           CashSessionStatus `gorm:"size:10;index" json:"status"`
	OpenedAt         time.Time         `json:"opened_at"`
	ClosedAt         *time.Time        `json:"closed_at"`
	ClosingAmount    *decimal.Decimal  `gorm:"type:decimal(12,2)" json:"closing_amount"`
	ClosingBreakdown datatypes.JSON    `json:"closing_breakdown,omitempty"`
	ClosedBy         *uint             `json:"closed_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (CashSession) TableName() string { return "caja_sesiones" }

// IsOpen treats rows without a status as open; older rows were written before the column existed.
func (s CashSession) IsOpen() bool {
	return s.Status == CashSessionOpen || s.Status == ""
}
