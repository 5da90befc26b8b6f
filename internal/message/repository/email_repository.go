package repository

import (
	"errors"
	"time"

	messagedomain "phishguard-backend/internal/message/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Predicate shared by the backfill queries: not yet classified, or only carrying
// the sentinel verdict from a failed classifier call.
const unclassifiedCond = "(verdict IS NULL OR verdict = '' OR verdict = 'unknown')"

// EmailRepository defines the interface for email message persistence
type EmailRepository interface {
	// ClaimNextUnclassified atomically selects one unclassified message and
	// marks it processing. Returns (nil, nil) when nothing is claimable.
	ClaimNextUnclassified() (*messagedomain.EmailMessage, error)
	// UpdateClassification writes the full verdict block and clears the
	// processing marker in one update.
	UpdateClassification(id string, result messagedomain.Classification) error
	// ClearProcessing releases a claim without writing a verdict.
	ClearProcessing(id string) error
	Exists(gmailAddress, messageID string) (bool, error)
	Create(msg *messagedomain.EmailMessage) error
	// DeleteInvalid purges messages with no sender or no body.
	DeleteInvalid() (int64, error)
	FindByUserID(userID string, limit, offset int) ([]messagedomain.EmailMessage, int64, error)
	LatestByAccount(gmailAddress string) (*messagedomain.EmailMessage, error)
	CountByVerdict(userID string) (map[string]int64, error)
}

// emailRepository implements EmailRepository interface
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{
		db: db,
	}
}

// ClaimNextUnclassified claims the oldest unclassified message. The row lock
// (FOR UPDATE SKIP LOCKED) plus the processing flag make the claim exclusive
// across loop instances and across process restarts racing on the same store.
func (r *emailRepository) ClaimNextUnclassified() (*messagedomain.EmailMessage, error) {
	var msg messagedomain.EmailMessage
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(unclassifiedCond+" AND processing = ?", false).
			Order("received_at ASC").
			First(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&messagedomain.EmailMessage{}).
			Where("id = ?", msg.ID).
			Updates(map[string]interface{}{"processing": true, "updated_at": time.Now()}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg.Processing = true
	return &msg, nil
}

func (r *emailRepository) UpdateClassification(id string, result messagedomain.Classification) error {
	return r.db.Model(&messagedomain.EmailMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"verdict":          result.Verdict,
			"confidence":       result.Confidence,
			"reasoning":        result.Reasoning,
			"highlighted_text": result.HighlightedText,
			"suggestion":       result.Suggestion,
			"processing":       false,
			"updated_at":       time.Now(),
		}).Error
}

func (r *emailRepository) ClearProcessing(id string) error {
	return r.db.Model(&messagedomain.EmailMessage{}).
		Where("id = ?", id).
		Update("processing", false).Error
}

func (r *emailRepository) Exists(gmailAddress, messageID string) (bool, error) {
	var count int64
	err := r.db.Model(&messagedomain.EmailMessage{}).
		Where("gmail_address = ? AND message_id = ?", gmailAddress, messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *emailRepository) Create(msg *messagedomain.EmailMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = time.Now()
	// ON CONFLICT DO NOTHING keeps concurrent deliveries of the same delta
	// idempotent even past the Exists check.
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gmail_address"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(msg).Error
}

func (r *emailRepository) DeleteInvalid() (int64, error) {
	res := r.db.Where("sender IS NULL OR sender = '' OR body IS NULL OR body = ''").
		Delete(&messagedomain.EmailMessage{})
	return res.RowsAffected, res.Error
}

func (r *emailRepository) FindByUserID(userID string, limit, offset int) ([]messagedomain.EmailMessage, int64, error) {
	var messages []messagedomain.EmailMessage
	var total int64

	query := r.db.Model(&messagedomain.EmailMessage{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("received_at DESC").Limit(limit).Offset(offset).Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *emailRepository) LatestByAccount(gmailAddress string) (*messagedomain.EmailMessage, error) {
	var msg messagedomain.EmailMessage
	err := r.db.Where("gmail_address = ?", gmailAddress).
		Order("received_at DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// CountByVerdict aggregates the user's messages by verdict for the dashboard.
// Unclassified rows are reported under the "pending" bucket.
func (r *emailRepository) CountByVerdict(userID string) (map[string]int64, error) {
	type row struct {
		Verdict *string
		Count   int64
	}
	var rows []row
	err := r.db.Model(&messagedomain.EmailMessage{}).
		Select("verdict, count(*) as count").
		Where("user_id = ?", userID).
		Group("verdict").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		bucket := "pending"
		if r.Verdict != nil && *r.Verdict != "" {
			bucket = *r.Verdict
		}
		counts[bucket] += r.Count
	}
	return counts, nil
}
