package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Cyvadra/tv-dispatch/broker"
	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL points at the paper-trading environment; set BaseURL
// before initializing clients to trade against the live API.
const DefaultBaseURL = "https://paper-api.alpaca.markets"

// BaseURL is the Alpaca API endpoint used by new clients.
var BaseURL = DefaultBaseURL

// Client represents an Alpaca broker client used for stock and forex
// subscriptions. Alpaca supports fractional quantities, so no lot step
// is reported and callers fall back to raw quantities.
type Client struct {
	name      string
	http      *resty.Client
	connected bool
}

// orderPayload is the request body for POST /v2/orders
type orderPayload struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	LimitPrice  string `json:"limit_price,omitempty"`
}

// orderResponse mirrors the fields of Alpaca's order entity we consume
type orderResponse struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	FilledQty     string `json:"filled_qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	LimitPrice    string `json:"limit_price"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// assetResponse mirrors GET /v2/assets/{symbol}
type assetResponse struct {
	Symbol   string `json:"symbol"`
	Class    string `json:"class"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}

// NewClient creates a new Alpaca client
func NewClient() broker.Broker {
	return &Client{
		name:      "alpaca",
		connected: false,
	}
}

func init() {
	broker.Register("alpaca", NewClient)
}

// Name returns the broker name
func (c *Client) Name() string {
	return c.name
}

// Initialize sets up the client with credentials
func (c *Client) Initialize(ctx context.Context, credentials *broker.Credentials) error {
	if credentials == nil {
		return broker.ErrInvalidCredentials
	}

	if credentials.APIKey == "" || credentials.SecretKey == "" {
		return broker.NewPermanentError(c.name, "INVALID_CREDENTIALS", "API key and secret key are required", broker.ErrInvalidCredentials)
	}

	c.http = resty.New().
		SetBaseURL(BaseURL).
		SetTimeout(10*time.Second).
		SetHeader("APCA-API-KEY-ID", credentials.APIKey).
		SetHeader("APCA-API-SECRET-KEY", credentials.SecretKey)

	c.connected = true
	return nil
}

// TestConnection verifies the credentials against the account endpoint
func (c *Client) TestConnection(ctx context.Context) error {
	if c.http == nil {
		return broker.ErrNotConnected
	}

	resp, err := c.http.R().SetContext(ctx).Get("/v2/account")
	if err != nil {
		return broker.NewTransientError(c.name, "CONNECTION_FAILED", "Failed to reach Alpaca", fmt.Errorf("%w: %v", broker.ErrNetworkError, err))
	}
	if resp.IsError() {
		return c.classifyStatus(resp.StatusCode(), "CONNECTION_FAILED", resp.String())
	}

	return nil
}

// PlaceOrder places a new order
func (c *Client) PlaceOrder(ctx context.Context, req *broker.OrderRequest) (*broker.Order, error) {
	if !c.connected {
		return nil, broker.ErrNotConnected
	}

	if err := broker.ValidateOrderRequest(req); err != nil {
		return nil, err
	}

	payload := orderPayload{
		Symbol:      req.Symbol,
		Qty:         req.Quantity,
		Side:        strings.ToLower(string(req.Side)),
		Type:        strings.ToLower(string(req.Type)),
		TimeInForce: "gtc",
	}
	if req.Type == broker.OrderTypeLimit {
		payload.LimitPrice = req.Price
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/v2/orders")

	if err != nil {
		return nil, broker.NewTransientError(c.name, "ORDER_FAILED", "Failed to place order", fmt.Errorf("%w: %v", broker.ErrNetworkError, err))
	}
	if resp.IsError() {
		return nil, c.classifyStatus(resp.StatusCode(), "ORDER_FAILED", resp.String())
	}

	return convertOrder(&result), nil
}

// GetOrder retrieves an order by id
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID string) (*broker.Order, error) {
	if !c.connected {
		return nil, broker.ErrNotConnected
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v2/orders/" + orderID)

	if err != nil {
		return nil, broker.NewTransientError(c.name, "GET_ORDER_FAILED", "Failed to get order", fmt.Errorf("%w: %v", broker.ErrNetworkError, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, broker.ErrOrderNotFound
	}
	if resp.IsError() {
		return nil, c.classifyStatus(resp.StatusCode(), "GET_ORDER_FAILED", resp.String())
	}

	return convertOrder(&result), nil
}

// GetSymbolInfo returns trading rules for a symbol. Alpaca has no lot
// step; StepSize stays empty so callers use the raw quantity.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*broker.SymbolInfo, error) {
	if !c.connected {
		return nil, broker.ErrNotConnected
	}

	var asset assetResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&asset).
		Get("/v2/assets/" + symbol)

	if err != nil {
		return nil, broker.NewTransientError(c.name, "ASSET_FAILED", "Failed to get asset", fmt.Errorf("%w: %v", broker.ErrNetworkError, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, broker.NewPermanentError(c.name, "SYMBOL_NOT_FOUND",
			fmt.Sprintf("Symbol %s not found", symbol), broker.ErrSymbolNotTradable)
	}
	if resp.IsError() {
		return nil, c.classifyStatus(resp.StatusCode(), "ASSET_FAILED", resp.String())
	}

	if !asset.Tradable {
		return nil, broker.NewPermanentError(c.name, "SYMBOL_NOT_TRADABLE",
			fmt.Sprintf("Symbol %s is not tradable", symbol), broker.ErrSymbolNotTradable)
	}

	return &broker.SymbolInfo{
		Symbol: asset.Symbol,
		Status: asset.Status,
	}, nil
}

// IsConnected returns whether the client has been initialized
func (c *Client) IsConnected() bool {
	return c.connected
}

// Close shuts down the client
func (c *Client) Close() error {
	c.connected = false
	c.http = nil
	return nil
}

// classifyStatus maps an Alpaca HTTP status to a classified broker error
func (c *Client) classifyStatus(status int, code, body string) *broker.BrokerError {
	message := fmt.Sprintf("status %d: %s", status, body)

	switch {
	case status == http.StatusTooManyRequests:
		return broker.NewTransientError(c.name, "RATE_LIMIT", message, broker.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized:
		return broker.NewPermanentError(c.name, "AUTH_REJECTED", message, broker.ErrInvalidCredentials)
	case status == http.StatusForbidden:
		// Alpaca returns 403 for insufficient buying power
		return broker.NewPermanentError(c.name, "INSUFFICIENT_BALANCE", message, broker.ErrInsufficientBalance)
	case status == http.StatusUnprocessableEntity:
		return broker.NewPermanentError(c.name, "UNPROCESSABLE", message, broker.ErrSymbolNotTradable)
	case status >= 500:
		return broker.NewTransientError(c.name, "SERVER_ERROR", message, nil)
	default:
		return broker.NewTransientError(c.name, code, message, nil)
	}
}

func convertOrder(o *orderResponse) *broker.Order {
	createdAt, _ := time.Parse(time.RFC3339, o.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, o.UpdatedAt)

	return &broker.Order{
		ID:               o.ID,
		ClientOrderID:    o.ClientOrderID,
		Symbol:           o.Symbol,
		Side:             broker.OrderSide(strings.ToUpper(o.Side)),
		Type:             broker.OrderType(strings.ToUpper(o.Type)),
		Quantity:         o.Qty,
		Price:            o.LimitPrice,
		ExecutedQuantity: o.FilledQty,
		Status:           convertStatus(o.Status),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
}

func convertStatus(status string) broker.OrderStatus {
	switch status {
	case "filled":
		return broker.OrderStatusFilled
	case "partially_filled":
		return broker.OrderStatusPartiallyFilled
	case "canceled":
		return broker.OrderStatusCanceled
	case "rejected":
		return broker.OrderStatusRejected
	case "expired":
		return broker.OrderStatusExpired
	default:
		return broker.OrderStatusNew
	}
}
