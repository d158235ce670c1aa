package models

import "time"

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSupervisor UserRole = "supervisor"
	RoleCashier    UserRole = "cashier"
	RoleWaiter     UserRole = "waiter"
	RoleKitchen    UserRole = "kitchen"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleCashier, RoleWaiter, RoleKitchen:
		return true
	}
	return false
}

// Elevated roles may act on other operators' cash sessions.
func (r UserRole) Elevated() bool {
	return r == RoleAdmin || r == RoleSupervisor
}

type User struct {
	ID           uint     `gorm:"primaryKey"`
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	Active       bool     `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "usuarios" }

// Actor is the authenticated user a service call acts on behalf of.
type Actor struct {
	ID   uint
	Name string
	Role UserRole
}
