package broker

import (
	"context"
)

// Broker represents an exchange adapter used to place orders on behalf of
// one set of user credentials. Implementations wrap the exchange's own
// client; the dispatcher is agnostic to which exchange backs a subscription.
type Broker interface {
	// Name returns the name of the broker
	Name() string

	// Initialize sets up the broker with credentials
	Initialize(ctx context.Context, credentials *Credentials) error

	// Test connection to the broker
	TestConnection(ctx context.Context) error

	// PlaceOrder places a new order
	PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error)

	// GetOrder retrieves an existing order by id
	GetOrder(ctx context.Context, symbol string, orderID string) (*Order, error)

	// GetSymbolInfo returns trading rules for a symbol, including the lot step
	GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// Utility methods
	IsConnected() bool
	Close() error
}

// BrokerFactory is a factory function type for creating brokers
type BrokerFactory func() Broker

// Registry holds all registered broker factories
var Registry = make(map[string]BrokerFactory)

// Register registers a broker factory
func Register(name string, factory BrokerFactory) {
	Registry[name] = factory
}

// Create creates a new broker instance by name
func Create(name string) (Broker, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, ErrBrokerNotFound
	}
	return factory(), nil
}

// GetRegisteredBrokers returns a list of all registered broker names
func GetRegisteredBrokers() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	return names
}
