package binance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cyvadra/tv-dispatch/broker"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

// UseTestnet routes all clients to the Binance futures testnet.
var UseTestnet = true

// Client represents a Binance futures broker client
type Client struct {
	name        string
	client      *futures.Client
	credentials *broker.Credentials
	connected   bool
}

// NewClient creates a new Binance futures client
func NewClient() broker.Broker {
	return &Client{
		name:      "binance",
		connected: false,
	}
}

func init() {
	broker.Register("binance", NewClient)
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

	c.credentials = credentials
	binance.UseTestnet = UseTestnet
	c.client = binance.NewFuturesClient(credentials.APIKey, credentials.SecretKey)

	c.connected = true
	return nil
}

// TestConnection tests the connection to Binance
func (c *Client) TestConnection(ctx context.Context) error {
	if c.client == nil {
		return broker.ErrNotConnected
	}

	// Test connectivity by getting server time
	_, err := c.client.NewServerTimeService().Do(ctx)
	if err != nil {
		return classify(c.name, "CONNECTION_FAILED", "Failed to connect to Binance", err)
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

	service := c.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(convertToBinanceSide(req.Side)).
		Type(convertToBinanceOrderType(req.Type)).
		Quantity(req.Quantity)

	if req.Type == broker.OrderTypeLimit {
		tif := futures.TimeInForceTypeGTC
		if req.TimeInForce != "" {
			tif = futures.TimeInForceType(req.TimeInForce)
		}
		service = service.Price(req.Price).TimeInForce(tif)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return nil, classify(c.name, "ORDER_FAILED", "Failed to place order", err)
	}

	return &broker.Order{
		ID:               fmt.Sprintf("%d", resp.OrderID),
		ClientOrderID:    resp.ClientOrderID,
		Symbol:           resp.Symbol,
		Side:             broker.OrderSide(resp.Side),
		Type:             broker.OrderType(resp.Type),
		Quantity:         resp.OrigQuantity,
		Price:            resp.Price,
		ExecutedQuantity: resp.ExecutedQuantity,
		Status:           broker.OrderStatus(resp.Status),
		CreatedAt:        time.Unix(resp.UpdateTime/1000, 0),
		UpdatedAt:        time.Unix(resp.UpdateTime/1000, 0),
	}, nil
}

// GetOrder retrieves an order by id
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID string) (*broker.Order, error) {
	if !c.connected {
		return nil, broker.ErrNotConnected
	}

	var id int64
	if _, err := fmt.Sscanf(orderID, "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid binance order id %q: %w", orderID, err)
	}

	resp, err := c.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return nil, classify(c.name, "GET_ORDER_FAILED", "Failed to get order", err)
	}

	return &broker.Order{
		ID:               fmt.Sprintf("%d", resp.OrderID),
		ClientOrderID:    resp.ClientOrderID,
		Symbol:           resp.Symbol,
		Side:             broker.OrderSide(resp.Side),
		Type:             broker.OrderType(resp.Type),
		Quantity:         resp.OrigQuantity,
		Price:            resp.Price,
		ExecutedQuantity: resp.ExecutedQuantity,
		Status:           broker.OrderStatus(resp.Status),
		CreatedAt:        time.Unix(resp.Time/1000, 0),
		UpdatedAt:        time.Unix(resp.UpdateTime/1000, 0),
	}, nil
}

// GetSymbolInfo returns trading rules for a symbol
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*broker.SymbolInfo, error) {
	if !c.connected {
		return nil, broker.ErrNotConnected
	}

	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify(c.name, "EXCHANGE_INFO_FAILED", "Failed to get exchange info", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}

		result := &broker.SymbolInfo{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		}
		if f := s.LotSizeFilter(); f != nil {
			result.MinQty = f.MinQuantity
			result.MaxQty = f.MaxQuantity
			result.StepSize = f.StepSize
		}
		if f := s.PriceFilter(); f != nil {
			result.TickSize = f.TickSize
		}
		return result, nil
	}

	return nil, broker.NewPermanentError(c.name, "SYMBOL_NOT_FOUND",
		fmt.Sprintf("Symbol %s not found", symbol), broker.ErrSymbolNotTradable)
}

// IsConnected returns whether the client has been initialized
func (c *Client) IsConnected() bool {
	return c.connected
}

// Close shuts down the client
func (c *Client) Close() error {
	c.connected = false
	c.client = nil
	return nil
}

// classify maps a Binance API error to a classified broker error.
// Error codes per the Binance futures API documentation.
func classify(name, code, message string, err error) *broker.BrokerError {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1003, -1015: // TOO_MANY_REQUESTS, TOO_MANY_ORDERS
			return broker.NewTransientError(name, "RATE_LIMIT", message, fmt.Errorf("%w: %v", broker.ErrRateLimitExceeded, err))
		case -1022, -2014, -2015: // bad signature, bad API key format, rejected key
			return broker.NewPermanentError(name, "AUTH_REJECTED", message, fmt.Errorf("%w: %v", broker.ErrInvalidCredentials, err))
		case -2018, -2019: // balance / margin insufficient
			return broker.NewPermanentError(name, "INSUFFICIENT_BALANCE", message, fmt.Errorf("%w: %v", broker.ErrInsufficientBalance, err))
		case -1121: // invalid symbol
			return broker.NewPermanentError(name, "INVALID_SYMBOL", message, fmt.Errorf("%w: %v", broker.ErrSymbolNotTradable, err))
		}
		if apiErr.Code <= -1000 && apiErr.Code > -1100 {
			// general server/network error bucket
			return broker.NewTransientError(name, "SERVER_ERROR", message, err)
		}
	}

	// Unknown errors classify transient so they get one more chance
	return broker.NewTransientError(name, code, message, err)
}

func convertToBinanceSide(side broker.OrderSide) futures.SideType {
	if side == broker.OrderSideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func convertToBinanceOrderType(orderType broker.OrderType) futures.OrderType {
	if orderType == broker.OrderTypeLimit {
		return futures.OrderTypeLimit
	}
	return futures.OrderTypeMarket
}
