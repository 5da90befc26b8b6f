package domain

import "time"

// FCMToken is a Firebase Cloud Messaging device token used to push
// verdict and new-mail notifications to a user's devices.
type FCMToken struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	Platform  string    `json:"platform"`                      // "android" or "web"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
