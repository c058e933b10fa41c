package models

import (
	"time"

	"gorm.io/gorm"
)

// Client is a billable customer of a tenant
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TenantID  uint           `gorm:"index;not null" json:"tenant_id"`
	Name      string         `gorm:"size:80;not null" json:"name"`
	Email     string         `gorm:"size:120" json:"email"`
	Phone     string         `gorm:"size:32" json:"phone"`
	Address   string         `gorm:"size:200" json:"address"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
