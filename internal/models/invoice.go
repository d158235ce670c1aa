package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodMixed    PaymentMethod = "mixed"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodMixed:
		return true
	}
	return false
}

// Invoice is written once and never updated. The CAI fields are a snapshot taken at issuance.
type Invoice struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrderID        uint   `gorm:"not null;uniqueIndex" json:"order_id"`
	CashSessionID  uint   `gorm:"not null;index" json:"cash_session_id"`
	CAIID          uint   `gorm:"column:cai_id;not null;index" json:"cai_id"`
	CAICode        string `gorm:"column:cai_code;size:60;not null" json:"cai_code"`
	CAIExpiresOn   string `gorm:"column:cai_expires_on;size:10;not null" json:"cai_expires_on"`
	CAIRangeFrom   int64  `gorm:"column:cai_range_from;not null" json:"cai_range_from"`
	CAIRangeTo     int64  `gorm:"column:cai_range_to;not null" json:"cai_range_to"`
	Establishment  int    `gorm:"not null" json:"establishment"`
	EmissionPoint  int    `gorm:"not null" json:"emission_point"`
	DocumentType   int    `gorm:"not null" json:"document_type"`
	Correlative    int64  `gorm:"not null" json:"correlative"`
	DocumentNumber string `gorm:"size:25;not null;uniqueIndex" json:"document_number"`
	IsCopy         bool   `gorm:"not null" json:"is_copy"`

	CustomerName  string `gorm:"size:150" json:"customer_name"`
	CustomerTaxID string `gorm:"size:20" json:"customer_tax_id"`

	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Tax       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedBy uint            `gorm:"not null" json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`

	Payments []Payment `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

func (Invoice) TableName() string { return "facturas" }

type Payment struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	InvoiceID uint             `gorm:"index;not null" json:"invoice_id"`
	Method    PaymentMethod    `gorm:"size:20;not null" json:"method"`
	Amount    decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"amount"`
	Tendered  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"tendered,omitempty"`
	Change    *decimal.Decimal `gorm:"column:change_given;type:decimal(12,2)" json:"change,omitempty"`
	Reference *string          `gorm:"size:100" json:"reference,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Payment) TableName() string { return "pagos" }
