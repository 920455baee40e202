package broker

import (
	"time"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// Credentials represents the API credentials for a broker
type Credentials struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase,omitempty"` // For some exchanges
}

// OrderRequest represents a request to place an order
type OrderRequest struct {
	Symbol      string    `json:"symbol"`
	Side        OrderSide `json:"side"`
	Type        OrderType `json:"type"`
	Quantity    string    `json:"quantity"`
	Price       string    `json:"price,omitempty"`         // Required for limit orders
	TimeInForce string    `json:"time_in_force,omitempty"` // GTC, IOC, FOK
}

// Order represents an order response
type Order struct {
	ID               string      `json:"id"`
	ClientOrderID    string      `json:"client_order_id"`
	Symbol           string      `json:"symbol"`
	Side             OrderSide   `json:"side"`
	Type             OrderType   `json:"type"`
	Quantity         string      `json:"quantity"`
	Price            string      `json:"price"`
	ExecutedQuantity string      `json:"executed_quantity"`
	Status           OrderStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// SymbolInfo represents trading rules for a symbol. StepSize is the lot
// step order quantities must be rounded down to; empty means unknown.
type SymbolInfo struct {
	Symbol      string `json:"symbol"`
	BaseAsset   string `json:"base_asset"`
	QuoteAsset  string `json:"quote_asset"`
	Status      string `json:"status"`
	MinQty      string `json:"min_qty"`
	MaxQty      string `json:"max_qty"`
	StepSize    string `json:"step_size"`
	TickSize    string `json:"tick_size"`
	MinNotional string `json:"min_notional"`
}
