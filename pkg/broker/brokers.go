// File: pkg/broker/brokers.go
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses as reported by adapters. An order is only acted upon by the
// trading loop once its status is StatusClosed.
const (
	StatusCanceled = "canceled"
	StatusClosed   = "closed"
	StatusOpen     = "open"
)

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Broker defines the interface for interacting with a cryptocurrency exchange.
type Broker interface {
	// GetLastPrice retrieves the price of the last trade for a symbol.
	GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetBalance retrieves the free (tradable) balance for a single asset.
	GetBalance(ctx context.Context, asset string) (Balance, error)

	// GetOrderBookAsks retrieves up to depth resting ask levels for a symbol,
	// sorted lowest price first.
	GetOrderBookAsks(ctx context.Context, symbol string, depth int) ([]OrderBookLevel, error)

	// PlaceMarketSell submits a market sell for the given base-asset amount
	// and reports the resulting fill.
	PlaceMarketSell(ctx context.Context, symbol string, amount decimal.Decimal) (Order, error)

	// PlaceMarketBuy submits a market buy for the given base-asset amount
	// and reports the resulting fill.
	PlaceMarketBuy(ctx context.Context, symbol string, amount decimal.Decimal) (Order, error)
}

// Balance represents the balance of a single asset.
type Balance struct {
	Asset     string          `json:"asset"`     // e.g. "XRP", "USDT"
	Available decimal.Decimal `json:"available"` // Amount available for trading
	Locked    decimal.Decimal `json:"locked"`    // Amount held by open orders
}

// Order represents a trade order's state and details.
type Order struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	Status       string          `json:"status"`
	RequestedVol decimal.Decimal `json:"requested_vol"`
	ExecutedVol  decimal.Decimal `json:"executed_vol"`
	AvgFillPrice decimal.Decimal `json:"avg_fill_price"` // Volume-weighted across fills
	Cost         decimal.Decimal `json:"cost"`           // Total quote spent or received
	Fee          decimal.Decimal `json:"fee"`
	FeeAsset     string          `json:"fee_asset,omitempty"`
	TimePlaced   time.Time       `json:"time_placed"`
}

// Closed reports whether the order has been fully executed and settled.
func (o Order) Closed() bool {
	return o.Status == StatusClosed
}

// OrderBookLevel represents a single price level in an order book.
type OrderBookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}
