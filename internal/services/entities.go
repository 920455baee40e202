package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Cyvadra/tv-dispatch/internal/database"
	"github.com/Cyvadra/tv-dispatch/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an entity cannot be resolved by uuid
var ErrNotFound = errors.New("entity not found")

// BotService handles bot reads and lifecycle transitions
type BotService struct {
	db *gorm.DB
}

// NewBotService creates a new bot service
func NewBotService() *BotService {
	return &BotService{
		db: database.GetDB(),
	}
}

// Create creates a new bot in the inactive state
func (s *BotService) Create(ownerUUID, symbol, timeframe, strategy string) (*models.Bot, error) {
	bot := &models.Bot{
		UUID:      uuid.NewString(),
		OwnerUUID: ownerUUID,
		Symbol:    symbol,
		Timeframe: timeframe,
		Strategy:  strategy,
		IsActive:  false,
		IsVisible: true,
	}
	if err := s.db.Create(bot).Error; err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return bot, nil
}

// GetByUUID returns the current snapshot of a bot
func (s *BotService) GetByUUID(botUUID string) (*models.Bot, error) {
	var bot models.Bot
	err := s.db.Where("uuid = ?", botUUID).First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bot: %w", err)
	}
	return &bot, nil
}

// SetActive transitions a bot between active and inactive
func (s *BotService) SetActive(botUUID string, active bool) error {
	result := s.db.Model(&models.Bot{}).
		Where("uuid = ?", botUUID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update bot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a bot. The bot must be resolvable but may be in any state.
func (s *BotService) Delete(botUUID string) error {
	result := s.db.Where("uuid = ?", botUUID).Delete(&models.Bot{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete bot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActiveAll applies the same transition to every bot owned by the
// caller. Each transition is independent; a failure on one bot does not
// block the others. Returns the number of bots updated.
func (s *BotService) SetActiveAll(ownerUUID string, active bool) (int, error) {
	var bots []models.Bot
	if err := s.db.Where("owner_uuid = ?", ownerUUID).Find(&bots).Error; err != nil {
		return 0, fmt.Errorf("failed to list bots: %w", err)
	}

	updated := 0
	for _, bot := range bots {
		if err := s.SetActive(bot.UUID, active); err != nil {
			log.Printf("Failed to set bot %s active=%v: %v", bot.UUID, active, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// SubscriptionService handles subscription reads and lifecycle transitions
type SubscriptionService struct {
	db *gorm.DB
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService() *SubscriptionService {
	return &SubscriptionService{
		db: database.GetDB(),
	}
}

// Create creates a new subscription in the inactive state
func (s *SubscriptionService) Create(botUUID, userUUID string, amount float64, leverage int) (*models.Subscription, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("subscription amount must be positive")
	}
	if leverage < 1 {
		leverage = 1
	}

	sub := &models.Subscription{
		UUID:     uuid.NewString(),
		BotUUID:  botUUID,
		UserUUID: userUUID,
		Amount:   amount,
		Leverage: leverage,
		IsActive: false,
	}
	if err := s.db.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

// GetByUUID returns the current snapshot of a subscription
func (s *SubscriptionService) GetByUUID(subUUID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.Where("uuid = ?", subUUID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return &sub, nil
}

// ListActiveByBot returns the active subscriptions following a bot.
// Always reads current state so subscriptions disabled mid-flight are
// excluded from the next dispatch.
func (s *SubscriptionService) ListActiveByBot(botUUID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.Where("bot_uuid = ? AND is_active = ?", botUUID, true).Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// SetActive transitions a subscription between active and inactive
func (s *SubscriptionService) SetActive(subUUID string, active bool) error {
	result := s.db.Model(&models.Subscription{}).
		Where("uuid = ?", subUUID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a subscription
func (s *SubscriptionService) Delete(subUUID string) error {
	result := s.db.Where("uuid = ?", subUUID).Delete(&models.Subscription{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActiveAll applies the same transition to every subscription owned
// by a user, each independently. Returns the number updated.
func (s *SubscriptionService) SetActiveAll(userUUID string, active bool) (int, error) {
	var subs []models.Subscription
	if err := s.db.Where("user_uuid = ?", userUUID).Find(&subs).Error; err != nil {
		return 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	updated := 0
	for _, sub := range subs {
		if err := s.SetActive(sub.UUID, active); err != nil {
			log.Printf("Failed to set subscription %s active=%v: %v", sub.UUID, active, err)
			continue
		}
		updated++
	}
	return updated, nil
}

// CredentialService resolves exchange credentials for users
type CredentialService struct {
	db *gorm.DB
}

// NewCredentialService creates a new credential service
func NewCredentialService() *CredentialService {
	return &CredentialService{
		db: database.GetDB(),
	}
}

// Save stores a credential set for a user and exchange
func (s *CredentialService) Save(userUUID, exchange, apiKey, secretKey, passphrase string) (*models.UserCredential, error) {
	cred := &models.UserCredential{
		UUID:       uuid.NewString(),
		UserUUID:   userUUID,
		Exchange:   exchange,
		APIKey:     apiKey,
		SecretKey:  secretKey,
		Passphrase: passphrase,
		IsActive:   true,
	}
	if err := s.db.Create(cred).Error; err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}
	return cred, nil
}

// GetActive returns the active credential set for a user and exchange.
// The lookup is bounded by the caller's context. Credentials are
// borrowed read-only by the dispatch pipeline and never persisted in
// decrypted form anywhere else.
func (s *CredentialService) GetActive(ctx context.Context, userUUID, exchange string) (*models.UserCredential, error) {
	var cred models.UserCredential
	err := s.db.WithContext(ctx).Where("user_uuid = ? AND exchange = ? AND is_active = ?",
		userUUID, exchange, true).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return &cred, nil
}
