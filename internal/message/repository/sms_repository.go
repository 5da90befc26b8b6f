package repository

import (
	"time"

	messagedomain "phishguard-backend/internal/message/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SmsRepository defines the interface for SMS message persistence
type SmsRepository interface {
	// Save stores a device SMS, silently ignoring a re-sync of the same
	// message (dedup on the content hash).
	Save(sms *messagedomain.SmsMessage) error
	// FindUnclassified returns the next batch of records without a verdict.
	FindUnclassified(limit int) ([]messagedomain.SmsMessage, error)
	// UpdateIfStillUnclassified writes the verdict block only if the record
	// has not been classified in the meantime. Returns false when the
	// optimistic check failed and nothing was written.
	UpdateIfStillUnclassified(id string, result messagedomain.Classification) (bool, error)
	FindByUserID(userID string, limit, offset int) ([]messagedomain.SmsMessage, int64, error)
}

// smsRepository implements SmsRepository interface
type smsRepository struct {
	db *gorm.DB
}

// NewSmsRepository creates a new instance of smsRepository
func NewSmsRepository(db *gorm.DB) SmsRepository {
	return &smsRepository{
		db: db,
	}
}

func (r *smsRepository) Save(sms *messagedomain.SmsMessage) error {
	if sms.ID == "" {
		sms.ID = uuid.New().String()
	}
	if sms.MessageHash == "" {
		sms.MessageHash = messagedomain.SmsHash(sms.Address, sms.Body, sms.TimestampMs)
	}
	sms.CreatedAt = time.Now()
	sms.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_hash"}},
		DoNothing: true,
	}).Create(sms).Error
}

func (r *smsRepository) FindUnclassified(limit int) ([]messagedomain.SmsMessage, error) {
	var messages []messagedomain.SmsMessage
	err := r.db.Where(unclassifiedCond).
		Order("timestamp_ms ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *smsRepository) UpdateIfStillUnclassified(id string, result messagedomain.Classification) (bool, error) {
	res := r.db.Model(&messagedomain.SmsMessage{}).
		Where("id = ? AND "+unclassifiedCond, id).
		Updates(map[string]interface{}{
			"verdict":          result.Verdict,
			"confidence":       result.Confidence,
			"reasoning":        result.Reasoning,
			"highlighted_text": result.HighlightedText,
			"suggestion":       result.Suggestion,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *smsRepository) FindByUserID(userID string, limit, offset int) ([]messagedomain.SmsMessage, int64, error) {
	var messages []messagedomain.SmsMessage
	var total int64

	query := r.db.Model(&messagedomain.SmsMessage{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("timestamp_ms DESC").Limit(limit).Offset(offset).Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}
