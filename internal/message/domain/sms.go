package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SmsMessage is one SMS uploaded from a user's device. MessageHash is a content
// hash so re-syncing the same device message never creates a duplicate row.
type SmsMessage struct {
	ID          string `json:"id" gorm:"primaryKey"`
	UserID      string `json:"user_id" gorm:"index:idx_user_sms,unique;not null"`
	MessageHash string `json:"-" gorm:"index:idx_user_sms,unique;not null"`
	Address     string `json:"address"`
	Body        string `json:"body"`
	TimestampMs int64  `json:"timestamp_ms"`
	Classification
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SmsHash derives the dedup key for a device SMS from its content.
func SmsHash(address, body string, timestampMs int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", address, body, timestampMs)))
	return hex.EncodeToString(sum[:])
}
