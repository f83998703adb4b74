package models

import "time"

// UserProfile identifies a user within a tenant. Phone is the WhatsApp
// number without the "whatsapp:" prefix.
type UserProfile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"size:64;index"`
	Phone     string    `json:"phone" gorm:"size:32;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:128"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
