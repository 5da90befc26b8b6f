package domain

import "time"

// VerdictUnknown marks a record the classifier could not score. Distinct from an
// unclassified record, whose classification columns are all NULL.
const VerdictUnknown = "unknown"

// Classification is the verdict block shared by email and SMS records.
// All fields are NULL until the backfill loop writes the whole block in one update.
type Classification struct {
	Verdict         *string `json:"verdict" gorm:"column:verdict;index"`
	Confidence      *string `json:"confidence" gorm:"column:confidence"`
	Reasoning       *string `json:"reasoning" gorm:"column:reasoning"`
	HighlightedText *string `json:"highlighted_text" gorm:"column:highlighted_text"`
	Suggestion      *string `json:"suggestion" gorm:"column:suggestion"`
}

// IsClassified reports whether the block carries a real verdict. A sentinel
// "unknown" verdict still counts as unclassified so the backfill retries it.
func (c Classification) IsClassified() bool {
	return c.Verdict != nil && *c.Verdict != "" && *c.Verdict != VerdictUnknown
}

// EmailMessage is one ingested Gmail message. A message is identified by
// (gmail_address, message_id); the history-sync handler only ever creates,
// the backfill loop only ever fills the classification block.
type EmailMessage struct {
	ID           string `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"index;not null"`
	GmailAddress string `json:"gmail_address" gorm:"index:idx_account_message,unique;not null"`
	MessageID    string `json:"message_id" gorm:"index:idx_account_message,unique;not null"`
	Subject      string `json:"subject"`
	Sender       string `json:"sender"`
	Snippet      string `json:"snippet"`
	Body         string `json:"body"`
	ReceivedAt   int64  `json:"received_at"` // epoch milliseconds
	Processing   bool   `json:"-" gorm:"index;not null;default:false"`
	Classification
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
