package broker

import (
	"context"
	"errors"
	"fmt"
)

// Classification tells the retry policy whether an exchange failure is
// worth retrying. Unknown errors classify as transient so that a flaky
// exchange response gets one more chance before giving up.
type Classification string

const (
	ClassTransient Classification = "transient"
	ClassPermanent Classification = "permanent"
)

// Common broker errors
var (
	ErrBrokerNotFound      = errors.New("broker not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotConnected        = errors.New("broker not connected")
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrInvalidOrderType    = errors.New("invalid order type")
	ErrInvalidOrderSide    = errors.New("invalid order side")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSymbolNotTradable   = errors.New("symbol not tradable")
	ErrOrderNotFound       = errors.New("order not found")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrNetworkError        = errors.New("network error")
	ErrTimeout             = errors.New("request timeout")
)

// BrokerError represents an exchange-specific error with its retry class
type BrokerError struct {
	Broker         string         `json:"broker"`
	Code           string         `json:"code"`
	Classification Classification `json:"classification"`
	Message        string         `json:"message"`
	Err            error          `json:"-"`
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Broker, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Broker, e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a broker error that the retry policy may retry
func NewTransientError(broker, code, message string, err error) *BrokerError {
	return &BrokerError{Broker: broker, Code: code, Classification: ClassTransient, Message: message, Err: err}
}

// NewPermanentError creates a broker error that must not be retried
func NewPermanentError(broker, code, message string, err error) *BrokerError {
	return &BrokerError{Broker: broker, Code: code, Classification: ClassPermanent, Message: message, Err: err}
}

// IsPermanentError checks whether an error is classified permanent:
// invalid credentials or signature, insufficient balance or margin,
// symbol not tradable. Permanent failures are rejected without retry.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrSymbolNotTradable) ||
		errors.Is(err, ErrInvalidSymbol) {
		return true
	}

	var brokerErr *BrokerError
	if errors.As(err, &brokerErr) {
		return brokerErr.Classification == ClassPermanent
	}

	return false
}

// IsRetryableError checks if an error should be retried. Timeouts, rate
// limits and server errors are transient; anything not classified
// permanent is conservatively treated as transient too. A cancelled
// context is never retried; an exceeded per-call deadline is (it counts
// against the retry budget rather than being left hanging).
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrNetworkError) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return !IsPermanentError(err)
}

// IsClassifiedTransient reports whether an error was explicitly
// classified transient: a known transient sentinel, an exceeded
// per-call deadline, or a BrokerError an adapter marked transient.
// Unclassified errors are still retryable, but get one retry only.
func IsClassifiedTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrNetworkError) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var brokerErr *BrokerError
	if errors.As(err, &brokerErr) {
		return brokerErr.Classification == ClassTransient
	}

	return false
}
