package models

import "time"

// Idempotency record status
const (
	IdempotencyProcessing = 1 // first delivery still in flight
	IdempotencyDone       = 2 // reply cached, safe to replay
)

// IdempotencyRecord pins a provider message id to the reply it
// produced. The record is created before any mutating effect begins;
// a redelivered id replays ReplyText instead of re-running executors.
type IdempotencyRecord struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"size:128;uniqueIndex"`
	UserID            string    `json:"user_id" gorm:"size:64;index"`
	Status            int       `json:"status"`
	ReplyText         string    `json:"reply_text" gorm:"type:text"`
	ResultHash        string    `json:"result_hash" gorm:"size:64"`
	FirstSeenAt       time.Time `json:"first_seen_at"`
	ExpiresAt         time.Time `json:"expires_at" gorm:"index"`
}
