package domain

import "time"

// LinkedAccount is one connected Gmail mailbox. LastHistoryID is the mailbox's
// change-log cursor; it only ever moves forward, and only after the messages of
// a delta are durably stored.
type LinkedAccount struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"index;not null"`
	GmailAddress  string    `json:"gmail_address" gorm:"uniqueIndex;not null"`
	RefreshToken  string    `json:"-"`
	LastHistoryID uint64    `json:"last_history_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
