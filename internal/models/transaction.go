package models

import (
	"fmt"
	"time"
)

// Transaction types
const (
	TransactionExpense = "expense"
	TransactionRevenue = "revenue"
)

// Transaction is a recorded expense or revenue line. JobNumber 0 means
// unassigned (overhead). ProviderMessageID is the inbound message that
// produced the record, kept for audit.
type Transaction struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	TenantID          string    `json:"tenant_id" gorm:"size:64;index"`
	UserID            string    `json:"user_id" gorm:"size:64;index"`
	Type              string    `json:"type" gorm:"size:16;index"`
	AmountCents       int64     `json:"amount_cents"`
	Party             string    `json:"party" gorm:"size:128"` // vendor for expenses, payer for revenue
	Memo              string    `json:"memo" gorm:"size:256"`
	JobNumber         int       `json:"job_number" gorm:"index"`
	Date              time.Time `json:"date"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"size:128"`
	CreatedAt         time.Time `json:"created_at"`
}

// AmountDisplay renders the amount the way replies show money.
func (t *Transaction) AmountDisplay() string {
	return fmt.Sprintf("$%.2f", float64(t.AmountCents)/100)
}
