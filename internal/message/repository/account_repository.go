package repository

import (
	"errors"
	"time"

	messagedomain "phishguard-backend/internal/message/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository defines the interface for linked Gmail account persistence
type AccountRepository interface {
	FindByGmailAddress(gmailAddress string) (*messagedomain.LinkedAccount, error)
	FindByUserID(userID string) ([]messagedomain.LinkedAccount, error)
	// Upsert links a mailbox to a user, replacing the stored refresh token.
	Upsert(account *messagedomain.LinkedAccount) error
	// AdvanceHistoryID moves the change-log cursor forward. A stale value is a
	// no-op so a delayed, older notification can never rewind the cursor.
	AdvanceHistoryID(gmailAddress string, historyID uint64) error
	Delete(gmailAddress string) error
}

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) FindByGmailAddress(gmailAddress string) (*messagedomain.LinkedAccount, error) {
	var account messagedomain.LinkedAccount
	err := r.db.Where("gmail_address = ?", gmailAddress).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByUserID(userID string) ([]messagedomain.LinkedAccount, error) {
	var accounts []messagedomain.LinkedAccount
	err := r.db.Where("user_id = ?", userID).Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Upsert(account *messagedomain.LinkedAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gmail_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "refresh_token", "updated_at"}),
	}).Create(account).Error
}

func (r *accountRepository) Delete(gmailAddress string) error {
	return r.db.Where("gmail_address = ?", gmailAddress).Delete(&messagedomain.LinkedAccount{}).Error
}

func (r *accountRepository) AdvanceHistoryID(gmailAddress string, historyID uint64) error {
	return r.db.Model(&messagedomain.LinkedAccount{}).
		Where("gmail_address = ? AND last_history_id < ?", gmailAddress, historyID).
		Updates(map[string]interface{}{
			"last_history_id": historyID,
			"updated_at":      time.Now(),
		}).Error
}
