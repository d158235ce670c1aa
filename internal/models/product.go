package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item. Orders only read it and copy name and price into their lines.
type Product struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CategoryID      uint            `gorm:"index;not null" json:"category_id"`
	Name            string          `gorm:"size:120;not null" json:"name"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	RequiresKitchen bool            `gorm:"not null" json:"requires_kitchen"`
	Active          bool            `gorm:"not null;index" json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Product) TableName() string { return "productos" }

// Modifier is a customization group such as "size" or "extras".
type Modifier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []ModifierOption `gorm:"foreignKey:ModifierID" json:"options,omitempty"`
}

func (Modifier) TableName() string { return "modificadores" }

type ModifierOption struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ModifierID uint            `gorm:"index;not null" json:"modifier_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Surcharge  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"surcharge"`
	Active     bool            `gorm:"not null" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (ModifierOption) TableName() string { return "modificador_opciones" }

// ProductModifier links a product to the modifier groups it accepts.
type ProductModifier struct {
	ProductID  uint `gorm:"primaryKey"`
	ModifierID uint `gorm:"primaryKey"`
}

func (ProductModifier) TableName() string { return "producto_modificadores" }
