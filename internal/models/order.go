package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderKind string

const (
	OrderKindDineIn   OrderKind = "dine_in"
	OrderKindTakeout  OrderKind = "takeout"
	OrderKindDelivery OrderKind = "delivery"
)

func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindDineIn, OrderKindTakeout, OrderKindDelivery:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusNew           OrderStatus = "new"
	OrderStatusInPreparation OrderStatus = "in_preparation"
	OrderStatusReady         OrderStatus = "ready"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusVoided        OrderStatus = "voided"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusInPreparation, OrderStatusReady, OrderStatusDelivered, OrderStatusVoided:
		return true
	}
	return false
}

type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BusinessDate  string          `gorm:"size:10;not null;uniqueIndex:ux_ordenes_fecha_secuencia,priority:1" json:"business_date"`
	Sequence      int             `gorm:"not null;uniqueIndex:ux_ordenes_fecha_secuencia,priority:2" json:"sequence"`
	Code          string          `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Kind          OrderKind       `gorm:"size:20;not null" json:"kind"`
	Table         *string         `gorm:"column:table_ref;size:30" json:"table"`
	CustomerName  *string         `gorm:"size:120" json:"customer_name"`
	Notes         string          `gorm:"size:500" json:"notes"`
	Status        OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Tax           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedBy     uint            `gorm:"not null" json:"created_by"`
	KitchenUserID *uint           `json:"kitchen_user_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items   []OrderItem          `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"history,omitempty"`
}

func (Order) TableName() string { return "ordenes" }

// OrderItem keeps a snapshot of the product at order time; later menu edits never touch it.
type OrderItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"index;not null" json:"order_id"`
	ProductID       uint            `gorm:"index;not null" json:"product_id"`
	ProductName     string          `gorm:"size:120;not null" json:"product_name"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	RequiresKitchen bool            `gorm:"not null" json:"requires_kitchen"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	Notes           string          `gorm:"size:255" json:"notes"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	CreatedAt       time.Time       `json:"created_at"`

	Options []OrderItemOption `gorm:"foreignKey:OrderItemID" json:"options,omitempty"`
}

func (OrderItem) TableName() string { return "orden_detalle" }

type OrderItemOption struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderItemID uint            `gorm:"index;not null" json:"order_item_id"`
	ModifierID  uint            `gorm:"not null" json:"modifier_id"`
	OptionID    uint            `gorm:"not null" json:"option_id"`
	OptionName  string          `gorm:"size:100;not null" json:"option_name"`
	Surcharge   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"surcharge"`
}

func (OrderItemOption) TableName() string { return "orden_detalle_opciones" }

// OrderStatusHistory rows are append-only. FromStatus is nil for the initial record.
type OrderStatusHistory struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	OrderID    uint         `gorm:"index;not null" json:"order_id"`
	FromStatus *OrderStatus `gorm:"size:20" json:"from_status"`
	ToStatus   OrderStatus  `gorm:"size:20;not null" json:"to_status"`
	ActorID    uint         `gorm:"not null" json:"actor_id"`
	Comment    string       `gorm:"size:255" json:"comment"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (OrderStatusHistory) TableName() string { return "orden_estados_historial" }

// OrderCorrelative holds the last sequence handed out for a business date.
type OrderCorrelative struct {
	BusinessDate string    `gorm:"primaryKey;size:10"`
	LastNumber   int       `gorm:"not null"`
	UpdatedAt    time.Time
}

func (OrderCorrelative) TableName() string { return "orden_correlativo" }
