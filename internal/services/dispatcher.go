package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Cyvadra/tv-dispatch/broker"
	"github.com/Cyvadra/tv-dispatch/internal/config"
	"github.com/Cyvadra/tv-dispatch/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Report statuses for a whole dispatch.
const (
	ReportDispatched           = "dispatched"
	ReportSkippedNoBot         = "skipped_no_bot"
	ReportSkippedNoSubscribers = "skipped_no_subscribers"
)

// DispatchReport summarizes one alert's fan-out across all subscriptions
type DispatchReport struct {
	DeliveryID string                   `json:"delivery_id"`
	BotUUID    string                   `json:"bot_uuid"`
	Status     string                   `json:"status"`
	Total      int                      `json:"total"`
	Filled     int                      `json:"filled"`
	Rejected   int                      `json:"rejected"`
	Skipped    int                      `json:"skipped"`
	Errored    int                      `json:"errored"`
	Outcomes   []models.DispatchOutcome `json:"outcomes"`
}

// DispatchService fans one validated alert out to every active
// subscription of the targeted bot. Each subscription's pipeline runs in
// isolation: sizing, credential resolution and order placement failures
// are captured into that subscription's outcome and never abort siblings.
type DispatchService struct {
	cfg    config.DispatchConfig
	bots   *BotService
	subs   *SubscriptionService
	creds  *CredentialService
	ledger *LedgerService

	// newBroker is the adapter factory seam; tests swap it for mocks.
	newBroker func(exchange string) (broker.Broker, error)

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(cfg config.DispatchConfig) *DispatchService {
	return &DispatchService{
		cfg:       cfg,
		bots:      NewBotService(),
		subs:      NewSubscriptionService(),
		creds:     NewCredentialService(),
		ledger:    NewLedgerService(),
		newBroker: broker.Create,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetBrokerFactory replaces the exchange adapter factory
func (s *DispatchService) SetBrokerFactory(factory func(exchange string) (broker.Broker, error)) {
	s.newBroker = factory
}

// Ledger returns the underlying ledger service
func (s *DispatchService) Ledger() *LedgerService {
	return s.ledger
}

// ExchangeForAssetType maps an alert's asset type to the exchange
// adapter that executes it.
func ExchangeForAssetType(assetType string) string {
	switch assetType {
	case "crypto":
		return "binance"
	case "stock", "forex":
		return "alpaca"
	default:
		return ""
	}
}

// Dispatch resolves the targeted bot, loads its active subscriptions and
// drives the per-subscription pipeline concurrently under the configured
// worker limit and dispatch deadline. Only bookkeeping failures are
// returned as errors; per-subscription failures live in the outcomes.
func (s *DispatchService) Dispatch(ctx context.Context, alert *models.Alert) (*DispatchReport, error) {
	report := &DispatchReport{
		DeliveryID: alert.DeliveryID,
		BotUUID:    alert.BotUUID,
	}

	bot, err := s.bots.GetByUUID(alert.BotUUID)
	if errors.Is(err, ErrNotFound) {
		report.Status = ReportSkippedNoBot
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bot: %w", err)
	}

	// A bot disabled mid-flight or a symbol mismatch is a valid terminal
	// outcome, not an error.
	if !bot.IsActive || bot.Symbol != alert.Symbol {
		report.Status = ReportSkippedNoBot
		return report, nil
	}

	subs, err := s.subs.ListActiveByBot(bot.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		report.Status = ReportSkippedNoSubscribers
		return report, nil
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout())
	defer cancel()

	outcomes := make([]*models.DispatchOutcome, len(subs))
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.WorkerLimit)

	for i := range subs {
		i, sub := i, subs[i]
		g.Go(func() error {
			outcomes[i] = s.runSubscription(dispatchCtx, alert, &sub)
			return nil
		})
	}

	// Workers never return errors; every failure is an outcome.
	_ = g.Wait()

	report.Status = ReportDispatched
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		report.Total++
		switch outcome.Status {
		case models.OutcomeFilled:
			report.Filled++
		case models.OutcomeRejected:
			report.Rejected++
		case models.OutcomeSkipped:
			report.Skipped++
		default:
			report.Errored++
		}
		report.Outcomes = append(report.Outcomes, *outcome)
	}

	return report, nil
}

// runSubscription checks the ledger, executes the pipeline and persists
// the outcome. The ledger write happens before returning, even on error,
// so every attempt is auditable and replays stay idempotent.
func (s *DispatchService) runSubscription(ctx context.Context, alert *models.Alert, sub *models.Subscription) *models.DispatchOutcome {
	prior, err := s.ledger.Get(alert.DeliveryID, sub.UUID)
	if err != nil {
		log.Printf("Ledger lookup failed for delivery %s, subscription %s: %v",
			alert.DeliveryID, sub.UUID, err)
		return s.bookkeepingOutcome(alert, sub, err)
	}

	// Idempotent replay: a terminal outcome is reused as-is. A prior
	// non-terminal outcome (error or skipped) is re-attempted and
	// improved in place.
	if prior != nil && prior.IsTerminal() {
		return prior
	}

	outcome := s.executeSubscription(ctx, alert, sub)

	if prior != nil {
		if err := s.ledger.Improve(outcome); err != nil {
			log.Printf("Failed to improve outcome for delivery %s, subscription %s: %v",
				alert.DeliveryID, sub.UUID, err)
		}
		return outcome
	}

	inserted, err := s.ledger.TryRecord(outcome)
	if err != nil {
		log.Printf("Failed to record outcome for delivery %s, subscription %s: %v",
			alert.DeliveryID, sub.UUID, err)
		return outcome
	}
	if !inserted {
		// A concurrent delivery of the same webhook won the insert race;
		// its outcome is the authoritative one.
		if existing, err := s.ledger.Get(alert.DeliveryID, sub.UUID); err == nil && existing != nil {
			return existing
		}
	}

	return outcome
}

// executeSubscription is the per-subscription pipeline: size the order,
// resolve credentials, place the order with retries, classify failures.
func (s *DispatchService) executeSubscription(ctx context.Context, alert *models.Alert, sub *models.Subscription) *models.DispatchOutcome {
	exchange := ExchangeForAssetType(alert.AssetType)
	outcome := &models.DispatchOutcome{
		DeliveryID:       alert.DeliveryID,
		SubscriptionUUID: sub.UUID,
		UserUUID:         sub.UserUUID,
		Exchange:         exchange,
		AttemptedAt:      time.Now().UTC(),
	}

	if exchange == "" {
		outcome.Status = models.OutcomeError
		outcome.ErrorKind = models.ErrKindExchangeError
		outcome.ErrorMessage = fmt.Sprintf("no exchange for asset type %q", alert.AssetType)
		return outcome
	}

	// 1. Position sizing
	quantity, err := ComputeQuantity(sub, alert.ClosePrice)
	if err != nil {
		outcome.Status = models.OutcomeSkipped
		outcome.ErrorKind = models.ErrKindQuantityTooSmall
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	if ctx.Err() != nil {
		return s.timeoutOutcome(outcome)
	}

	// 2. Credential resolution. Missing credentials are a configuration
	// problem, terminal and never retried.
	credCtx, cancelCred := context.WithTimeout(ctx, s.cfg.CredentialTimeout())
	cred, err := s.creds.GetActive(credCtx, sub.UserUUID, exchange)
	cancelCred()
	if errors.Is(err, ErrNotFound) {
		outcome.Status = models.OutcomeError
		outcome.ErrorKind = models.ErrKindMissingCredentials
		outcome.ErrorMessage = fmt.Sprintf("no active %s credentials for user %s", exchange, sub.UserUUID)
		return outcome
	}
	if err != nil {
		if ctx.Err() != nil {
			return s.timeoutOutcome(outcome)
		}
		outcome.Status = models.OutcomeError
		outcome.ErrorKind = models.ErrKindMissingCredentials
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	client, err := s.newBroker(exchange)
	if err != nil {
		outcome.Status = models.OutcomeError
		outcome.ErrorKind = models.ErrKindExchangeError
		outcome.ErrorMessage = err.Error()
		return outcome
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Warning: failed to close %s client: %v", exchange, closeErr)
		}
	}()

	if err := client.Initialize(ctx, &broker.Credentials{
		APIKey:     cred.APIKey,
		SecretKey:  cred.SecretKey,
		Passphrase: cred.Passphrase,
	}); err != nil {
		return s.classifyFailure(outcome, err, 0)
	}

	// 3. Lot-step rounding. An unknown step falls back to the raw
	// quantity, flagged for audit.
	symbol := broker.FormatSymbol(alert.Symbol, exchange)
	info, err := client.GetSymbolInfo(ctx, symbol)
	if err != nil {
		log.Printf("Lot step unavailable for %s on %s: %v", symbol, exchange, err)
		info = nil
	}

	quantity, roundedToStep, err := ApplyLotStep(quantity, info)
	if err != nil {
		outcome.Status = models.OutcomeSkipped
		outcome.ErrorKind = models.ErrKindQuantityTooSmall
		outcome.ErrorMessage = err.Error()
		return outcome
	}
	outcome.Unrounded = !roundedToStep
	outcome.Quantity = quantity.String()

	// 4. Rate limiting shared across subscriptions hitting the same
	// exchange, then order placement with the retry budget.
	if err := s.limiter(exchange).Wait(ctx); err != nil {
		return s.timeoutOutcome(outcome)
	}

	if ctx.Err() != nil {
		return s.timeoutOutcome(outcome)
	}

	req := &broker.OrderRequest{
		Symbol:   symbol,
		Side:     orderSide(alert.Action),
		Type:     broker.OrderTypeMarket,
		Quantity: quantity.String(),
	}

	var placed *broker.Order
	attempts, err := broker.RetryWithBackoff(ctx, s.cfg.MaxRetries, s.cfg.RetryBaseDelay(), func() error {
		// Each attempt gets its own deadline detached from the dispatch
		// context: an order already sent to the exchange must finish and
		// record its true outcome rather than be force-cancelled.
		attemptCtx, cancel := context.WithTimeout(context.Background(), s.cfg.OrderTimeout())
		defer cancel()

		order, placeErr := client.PlaceOrder(attemptCtx, req)
		if placeErr != nil {
			return placeErr
		}
		placed = order
		return nil
	})
	outcome.Attempts = attempts

	if err != nil {
		if attempts == 0 {
			// The dispatch deadline expired before anything was sent.
			return s.timeoutOutcome(outcome)
		}
		return s.classifyFailure(outcome, err, attempts)
	}

	outcome.Status = models.OutcomeFilled
	outcome.OrderID = placed.ID
	return outcome
}

// limiter returns the shared rate limiter for an exchange
func (s *DispatchService) limiter(exchange string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[exchange]
	if !ok {
		burst := int(s.cfg.OrdersPerSecond)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(s.cfg.OrdersPerSecond), burst)
		s.limiters[exchange] = l
	}
	return l
}

// classifyFailure folds an exchange error into the outcome per the
// retry classification: permanent failures are rejected, everything
// else is an error eligible for improvement on a later delivery.
func (s *DispatchService) classifyFailure(outcome *models.DispatchOutcome, err error, attempts int) *models.DispatchOutcome {
	outcome.Attempts = attempts
	outcome.ErrorMessage = err.Error()

	if broker.IsPermanentError(err) {
		outcome.Status = models.OutcomeRejected
		outcome.ErrorKind = models.ErrKindExchangeError
		return outcome
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome.Status = models.OutcomeError
		outcome.ErrorKind = models.ErrKindDispatchTimeout
		return outcome
	}

	outcome.Status = models.OutcomeError
	outcome.ErrorKind = models.ErrKindExchangeError
	return outcome
}

// timeoutOutcome marks a pipeline that never reached the exchange before
// the dispatch deadline expired.
func (s *DispatchService) timeoutOutcome(outcome *models.DispatchOutcome) *models.DispatchOutcome {
	outcome.Status = models.OutcomeError
	outcome.ErrorKind = models.ErrKindDispatchTimeout
	outcome.ErrorMessage = "dispatch deadline exceeded before order placement"
	return outcome
}

// bookkeepingOutcome captures a ledger read failure without touching the
// exchange; the subscription can be retried on re-delivery.
func (s *DispatchService) bookkeepingOutcome(alert *models.Alert, sub *models.Subscription, err error) *models.DispatchOutcome {
	return &models.DispatchOutcome{
		DeliveryID:       alert.DeliveryID,
		SubscriptionUUID: sub.UUID,
		UserUUID:         sub.UserUUID,
		Status:           models.OutcomeError,
		ErrorKind:        models.ErrKindLedgerError,
		ErrorMessage:     err.Error(),
		AttemptedAt:      time.Now().UTC(),
	}
}

func orderSide(action string) broker.OrderSide {
	if action == "sell" {
		return broker.OrderSideSell
	}
	return broker.OrderSideBuy
}
