package services

import (
	"errors"
	"fmt"

	"github.com/Cyvadra/tv-dispatch/internal/database"
	"github.com/Cyvadra/tv-dispatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService is the append-only record of order placement attempts.
// The composite unique index on (delivery_id, subscription_uuid) gives
// atomic first-writer-wins semantics; it is the sole synchronization
// point between concurrent retries of the same webhook delivery.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new ledger service
func NewLedgerService() *LedgerService {
	return &LedgerService{
		db: database.GetDB(),
	}
}

// TryRecord inserts an outcome if no record exists yet for the
// (delivery, subscription) pair. Returns false when another writer got
// there first.
func (s *LedgerService) TryRecord(outcome *models.DispatchOutcome) (bool, error) {
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "delivery_id"}, {Name: "subscription_uuid"}},
		DoNothing: true,
	}).Create(outcome)

	if result.Error != nil {
		return false, fmt.Errorf("failed to record outcome: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// Get returns the recorded outcome for a (delivery, subscription) pair,
// or nil when none exists.
func (s *LedgerService) Get(deliveryID, subscriptionUUID string) (*models.DispatchOutcome, error) {
	var outcome models.DispatchOutcome
	err := s.db.Where("delivery_id = ? AND subscription_uuid = ?",
		deliveryID, subscriptionUUID).First(&outcome).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome: %w", err)
	}
	return &outcome, nil
}

// ListByDelivery returns all outcomes recorded for one delivery
func (s *LedgerService) ListByDelivery(deliveryID string) ([]models.DispatchOutcome, error) {
	var outcomes []models.DispatchOutcome
	err := s.db.Where("delivery_id = ?", deliveryID).
		Order("subscription_uuid").
		Find(&outcomes).Error
	return outcomes, err
}

// Improve replaces a prior non-terminal (error or skipped) outcome with
// the result of a retry. Terminal rows are never touched. Skipped rows
// must be replaceable too: a later delivery can fill after the lot step
// or subscription sizing changed, and the placed order has to land in
// the ledger or replays would order again.
func (s *LedgerService) Improve(outcome *models.DispatchOutcome) error {
	result := s.db.Model(&models.DispatchOutcome{}).
		Where("delivery_id = ? AND subscription_uuid = ? AND status IN ?",
			outcome.DeliveryID, outcome.SubscriptionUUID,
			[]string{models.OutcomeError, models.OutcomeSkipped}).
		Updates(map[string]interface{}{
			"status":        outcome.Status,
			"error_kind":    outcome.ErrorKind,
			"error_message": outcome.ErrorMessage,
			"order_id":      outcome.OrderID,
			"quantity":      outcome.Quantity,
			"unrounded":     outcome.Unrounded,
			"attempts":      outcome.Attempts,
			"attempted_at":  outcome.AttemptedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to improve outcome: %w", result.Error)
	}
	return nil
}
