package usecase

import (
	"context"
	"log"
	"time"

	"phishguard-backend/internal/message/repository"
	"phishguard-backend/pkg/sse"
)

const (
	claimBackoff = 5 * time.Second
	sweepBackoff = 5 * time.Second
	smsBatchSize = 50
)

// EmailBackfillService continuously classifies stored email messages, one
// record at a time. The claim in the repository is atomic, so at most one
// record is ever mid-classification per loop instance, and two instances
// (including across process restarts) can never pick the same record.
type EmailBackfillService struct {
	emailRepo  repository.EmailRepository
	classifier Classifier
	sseManager *sse.Manager
}

func NewEmailBackfillService(emailRepo repository.EmailRepository, classifier Classifier, sseManager *sse.Manager) *EmailBackfillService {
	return &EmailBackfillService{
		emailRepo:  emailRepo,
		classifier: classifier,
		sseManager: sseManager,
	}
}

// Run polls until the context is cancelled. Cancellation is checked at the top
// of each iteration, never mid-record, so a claimed record is always released.
// The loop backs off whenever a pass made no progress: nothing claimable, a
// store failure, or only the sentinel verdict written because the classifier
// is down. A sentinel-verdict record re-matches the claim predicate, so
// treating it as progress would re-claim the same record in a tight loop.
func (s *EmailBackfillService) Run(ctx context.Context) {
	log.Println("[EmailBackfill] Starting email backfill loop")
	for {
		select {
		case <-ctx.Done():
			log.Println("[EmailBackfill] Stopped")
			return
		default:
		}

		if !s.RunOnce(ctx) {
			select {
			case <-ctx.Done():
			case <-time.After(claimBackoff):
			}
		}
	}
}

// RunOnce claims and processes at most one record. Returns true only when a
// real verdict was stored; false means no progress and the caller backs off.
// Whatever happens after the claim, the processing marker is cleared before
// returning.
func (s *EmailBackfillService) RunOnce(ctx context.Context) bool {
	msg, err := s.emailRepo.ClaimNextUnclassified()
	if err != nil {
		log.Printf("[EmailBackfill] Claim failed: %v", err)
		return false
	}
	if msg == nil {
		return false
	}

	// Never classify a senderless record; release the claim and let the
	// cleanup loop purge it.
	if msg.Sender == "" {
		if err := s.emailRepo.ClearProcessing(msg.ID); err != nil {
			log.Printf("[EmailBackfill] Failed to release claim on %s: %v", msg.ID, err)
		}
		return false
	}

	result := s.classifier.Classify(ctx, msg.Sender, msg.Subject, msg.Body)

	if err := s.emailRepo.UpdateClassification(msg.ID, toClassification(result)); err != nil {
		log.Printf("[EmailBackfill] Failed to store verdict for %s: %v", msg.ID, err)
		if err := s.emailRepo.ClearProcessing(msg.ID); err != nil {
			log.Printf("[EmailBackfill] Failed to release claim on %s: %v", msg.ID, err)
		}
		return false
	}

	log.Printf("[EmailBackfill] Classified message %s: %s", msg.ID, result.Verdict)

	if result.Verdict == "unknown" {
		// Sentinel stored; the record stays claimable for a later retry.
		return false
	}

	if s.sseManager != nil {
		s.sseManager.SendToUser(msg.UserID, "classification_update", map[string]interface{}{
			"id":         msg.ID,
			"message_id": msg.MessageID,
			"verdict":    result.Verdict,
			"confidence": result.Confidence,
		})
	}
	return true
}

// SmsBackfillService sweeps the unclassified SMS set in batches. Writes are
// optimistic: a record classified concurrently between read and write is
// silently skipped, never overwritten.
type SmsBackfillService struct {
	smsRepo    repository.SmsRepository
	classifier Classifier
}

func NewSmsBackfillService(smsRepo repository.SmsRepository, classifier Classifier) *SmsBackfillService {
	return &SmsBackfillService{
		smsRepo:    smsRepo,
		classifier: classifier,
	}
}

func (s *SmsBackfillService) Run(ctx context.Context) {
	log.Println("[SmsBackfill] Starting SMS backfill loop")
	for {
		select {
		case <-ctx.Done():
			log.Println("[SmsBackfill] Stopped")
			return
		default:
		}

		// Back off when the sweep made no progress: either the store is
		// empty or the classifier is down and only sentinels were written.
		if s.Sweep(ctx) == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(sweepBackoff):
			}
		}
	}
}

// Sweep classifies one batch of unclassified records and returns how many
// received a real verdict. Per-record failures are logged and skipped.
func (s *SmsBackfillService) Sweep(ctx context.Context) int {
	batch, err := s.smsRepo.FindUnclassified(smsBatchSize)
	if err != nil {
		log.Printf("[SmsBackfill] Query failed: %v", err)
		return 0
	}

	classified := 0
	for _, sms := range batch {
		select {
		case <-ctx.Done():
			return classified
		default:
		}

		result := s.classifier.Classify(ctx, sms.Address, "", sms.Body)

		updated, err := s.smsRepo.UpdateIfStillUnclassified(sms.ID, toClassification(result))
		if err != nil {
			log.Printf("[SmsBackfill] Failed to store verdict for %s: %v", sms.ID, err)
			continue
		}
		if !updated {
			// Classified or deleted by someone else since the read.
			continue
		}
		if result.Verdict != "unknown" {
			classified++
		}
	}
	return classified
}

// CleanupService periodically purges structurally invalid message records
// (missing sender or body) that slipped past the ingest gates.
type CleanupService struct {
	emailRepo repository.EmailRepository
	interval  time.Duration
}

func NewCleanupService(emailRepo repository.EmailRepository) *CleanupService {
	return &CleanupService{
		emailRepo: emailRepo,
		interval:  15 * time.Second,
	}
}

func (s *CleanupService) Run(ctx context.Context) {
	log.Printf("[GC] Starting invalid-message cleanup loop (interval: %s)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[GC] Stopped")
			return
		case <-ticker.C:
			deleted, err := s.emailRepo.DeleteInvalid()
			if err != nil {
				log.Printf("[GC] Purge failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("[GC] Purged %d invalid messages", deleted)
			}
		}
	}
}
