package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "create"
	AuditActionIssue    AuditAction = "issue"
	AuditActionReprint  AuditAction = "reprint"
	AuditActionVoid     AuditAction = "void"
	AuditActionOpen     AuditAction = "open"
	AuditActionClose    AuditAction = "close"
	AuditActionActivate AuditAction = "activate"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID   uint   `gorm:"index" json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"`

	// "invoice", "cash_session", "cai", "order"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction    `gorm:"size:20" json:"action"`
	Description string         `gorm:"size:255" json:"description"`
	Data        datatypes.JSON `json:"data"`
}

func (AuditLog) TableName() string { return "auditoria" }
