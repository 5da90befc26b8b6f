package repository

import (
	"time"

	authdomain "phishguard-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FCMTokenRepository is the registry of push-capable devices per user.
type FCMTokenRepository interface {
	// Register stores a device token; re-registering an existing token moves
	// it to the given user.
	Register(userID, token, platform string) error
	// TokensForUser returns the raw token strings to multicast to.
	TokensForUser(userID string) ([]string, error)
	// Remove drops one token, typically after FCM reported it dead.
	Remove(token string) error
	// RemoveAllForUser drops every device registration of a user (logout).
	RemoveAllForUser(userID string) error
}

// fcmTokenRepository implements FCMTokenRepository interface
type fcmTokenRepository struct {
	db *gorm.DB
}

// NewFCMTokenRepository creates a new instance of fcmTokenRepository
func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{
		db: db,
	}
}

func (r *fcmTokenRepository) Register(userID, token, platform string) error {
	record := &authdomain.FCMToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// The token is the natural key: a device re-registering (or changing
	// owner after a re-login) moves in place instead of duplicating.
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
	}).Create(record).Error
}

func (r *fcmTokenRepository) TokensForUser(userID string) ([]string, error) {
	var tokens []string
	err := r.db.Model(&authdomain.FCMToken{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *fcmTokenRepository) Remove(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.FCMToken{}).Error
}

func (r *fcmTokenRepository) RemoveAllForUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.FCMToken{}).Error
}
