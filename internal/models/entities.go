package models

import (
	"time"

	"gorm.io/gorm"
)

// Bot represents a shared trading-signal bot that users can subscribe to.
// An alert is only dispatchable while the bot is active and the alert's
// symbol matches the bot's symbol.
type Bot struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UUID      string         `json:"uuid" gorm:"uniqueIndex;not null"`
	OwnerUUID string         `json:"owner_uuid" gorm:"index"`
	Symbol    string         `json:"symbol" gorm:"not null"`
	Timeframe string         `json:"timeframe"`
	Strategy  string         `json:"strategy"`
	IsActive  bool           `json:"is_active" gorm:"default:false"`
	IsVisible bool           `json:"is_visible" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Subscription represents one user's participation in a bot with their own
// capital and leverage. Quantity is always derived at dispatch time, never
// stored as authoritative input.
type Subscription struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UUID      string         `json:"uuid" gorm:"uniqueIndex;not null"`
	BotUUID   string         `json:"bot_uuid" gorm:"index;not null"`
	UserUUID  string         `json:"user_uuid" gorm:"index;not null"`
	Amount    float64        `json:"amount" gorm:"not null"`
	Leverage  int            `json:"leverage" gorm:"default:1"`
	IsActive  bool           `json:"is_active" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// UserCredential represents exchange API credentials for a user.
// One active row per (user, exchange).
type UserCredential struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UUID       string         `json:"uuid" gorm:"uniqueIndex;not null"`
	UserUUID   string         `json:"user_uuid" gorm:"index;not null"`
	Exchange   string         `json:"exchange" gorm:"not null"` // binance, alpaca
	APIKey     string         `json:"api_key" gorm:"not null"`
	SecretKey  string         `json:"secret_key" gorm:"not null"`
	Passphrase string         `json:"passphrase,omitempty"`
	IsActive   bool           `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Alert represents one validated trading-signal event derived from an
// inbound webhook. Immutable once validated; persisted for audit.
type Alert struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	DeliveryID string    `json:"delivery_id" gorm:"index;not null"`
	BotUUID    string    `json:"bot_uuid" gorm:"index;not null"`
	Symbol     string    `json:"symbol" gorm:"not null"`
	AssetType  string    `json:"asset_type"` // crypto, stock, forex
	Interval   string    `json:"interval"`
	Action     string    `json:"action"` // buy, sell
	ClosePrice float64   `json:"close_price"`
	Strategy   string    `json:"strategy"`
	RawPayload string    `json:"raw_payload" gorm:"type:text"`
	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Dispatch outcome statuses.
const (
	OutcomeFilled   = "filled"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// Dispatch outcome error kinds.
const (
	ErrKindQuantityTooSmall   = "quantity_too_small"
	ErrKindMissingCredentials = "missing_credentials"
	ErrKindDispatchTimeout    = "dispatch_timeout"
	ErrKindExchangeError      = "exchange_error"
	ErrKindLedgerError        = "ledger_error"
)

// DispatchOutcome records one order-placement attempt per
// (delivery, subscription) pair. The composite unique index is the
// idempotency guarantee: the first writer wins, replays are skipped.
type DispatchOutcome struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	DeliveryID       string    `json:"delivery_id" gorm:"uniqueIndex:idx_delivery_subscription;not null"`
	SubscriptionUUID string    `json:"subscription_uuid" gorm:"uniqueIndex:idx_delivery_subscription;not null"`
	UserUUID         string    `json:"user_uuid" gorm:"index"`
	Exchange         string    `json:"exchange"`
	Status           string    `json:"status" gorm:"not null"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	OrderID          string    `json:"order_id,omitempty"`
	Quantity         string    `json:"quantity,omitempty"`
	Unrounded        bool      `json:"unrounded"` // lot step unknown, raw quantity used
	Attempts         int       `json:"attempts"`
	AttemptedAt      time.Time `json:"attempted_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsTerminal reports whether the outcome must never be re-attempted.
// Error outcomes may be improved by a later retry of the same delivery.
func (o *DispatchOutcome) IsTerminal() bool {
	return o.Status == OutcomeFilled || o.Status == OutcomeRejected
}
