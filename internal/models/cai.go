package models

import "time"

// CAI is a fiscal numbering authorization. Only one row may be active at a time and
// CurrentCorrelative only ever moves forward, one step per issued invoice.
type CAI struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Code               string    `gorm:"size:60;not null;uniqueIndex" json:"code"`
	Establishment      int       `gorm:"not null" json:"establishment"`
	EmissionPoint      int       `gorm:"not null" json:"emission_point"`
	DocumentType       int       `gorm:"not null" json:"document_type"`
	RangeFrom          int64     `gorm:"not null" json:"range_from"`
	RangeTo            int64     `gorm:"not null" json:"range_to"`
	ExpiresOn          string    `gorm:"size:10;not null" json:"expires_on"`
	CurrentCorrelative int64     `gorm:"not null" json:"current_correlative"`
	Active             bool      `gorm:"not null;index" json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (CAI) TableName() string { return "cai" }

// Remaining is how many correlatives are still available in the range.
func (c CAI) Remaining() int64 {
	if c.CurrentCorrelative >= c.RangeTo {
		return 0
	}
	if c.CurrentCorrelative < c.RangeFrom-1 {
		return c.RangeTo - c.RangeFrom + 1
	}
	return c.RangeTo - c.CurrentCorrelative
}
