// File: pkg/broker/binance/badapter.go
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/pkg/broker"
	"github.com/AndreyZakrevsky/btt/utilities"
)

// Adapter implements broker.Broker on top of the Binance Client, converting
// the SDK's string payloads into decimal-typed broker values.
type Adapter struct {
	client    *Client
	logger    *utilities.Logger
	appConfig *utilities.AppConfig
}

func NewAdapter(appCfg *utilities.AppConfig, httpClient *http.Client, logger *utilities.Logger) (*Adapter, error) {
	if appCfg == nil {
		return nil, errors.New("binance adapter: AppConfig cannot be nil")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("Binance.Adapter: Logger fallback used for adapter.")
	}

	logger.LogInfo("Initializing Binance Adapter...")
	client := NewClient(&appCfg.Binance, httpClient, logger)

	adapter := &Adapter{
		client:    client,
		logger:    logger,
		appConfig: appCfg,
	}

	logger.LogInfo("Binance Adapter initialized successfully.")
	return adapter, nil
}

// GetLastPrice retrieves the price of the last trade for a symbol.
func (a *Adapter) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	raw, err := a.client.LastPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("adapter: parse last price %q for %s: %w", raw, symbol, err)
	}
	return price, nil
}

// GetBalance retrieves the free and locked balance for a single asset.
func (a *Adapter) GetBalance(ctx context.Context, asset string) (broker.Balance, error) {
	raw, err := a.client.FreeBalance(ctx, asset)
	if err != nil {
		return broker.Balance{}, err
	}
	free, err := decimal.NewFromString(raw.Free)
	if err != nil {
		return broker.Balance{}, fmt.Errorf("adapter: parse free balance %q for %s: %w", raw.Free, asset, err)
	}
	locked, err := decimal.NewFromString(raw.Locked)
	if err != nil {
		return broker.Balance{}, fmt.Errorf("adapter: parse locked balance %q for %s: %w", raw.Locked, asset, err)
	}
	return broker.Balance{
		Asset:     raw.Asset,
		Available: free,
		Locked:    locked,
	}, nil
}

// GetOrderBookAsks retrieves up to depth resting ask levels, lowest price
// first, which is the order Binance reports them in.
func (a *Adapter) GetOrderBookAsks(ctx context.Context, symbol string, depth int) ([]broker.OrderBookLevel, error) {
	if depth <= 0 {
		depth = 20
	}
	resp, err := a.client.Depth(ctx, symbol, depth)
	if err != nil {
		return nil, err
	}

	levels := make([]broker.OrderBookLevel, 0, len(resp.Asks))
	for _, ask := range resp.Asks {
		price, perr := decimal.NewFromString(ask.Price)
		if perr != nil {
			return nil, fmt.Errorf("adapter: parse ask price %q for %s: %w", ask.Price, symbol, perr)
		}
		volume, verr := decimal.NewFromString(ask.Quantity)
		if verr != nil {
			return nil, fmt.Errorf("adapter: parse ask volume %q for %s: %w", ask.Quantity, symbol, verr)
		}
		levels = append(levels, broker.OrderBookLevel{Price: price, Volume: volume})
		if len(levels) >= depth {
			break
		}
	}
	return levels, nil
}

// PlaceMarketSell submits a market sell for the given base-asset amount.
func (a *Adapter) PlaceMarketSell(ctx context.Context, symbol string, amount decimal.Decimal) (broker.Order, error) {
	return a.placeMarket(ctx, symbol, binance.SideTypeSell, amount)
}

// PlaceMarketBuy submits a market buy for the given base-asset amount.
func (a *Adapter) PlaceMarketBuy(ctx context.Context, symbol string, amount decimal.Decimal) (broker.Order, error) {
	return a.placeMarket(ctx, symbol, binance.SideTypeBuy, amount)
}

func (a *Adapter) placeMarket(ctx context.Context, symbol string, side binance.SideType, amount decimal.Decimal) (broker.Order, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return broker.Order{}, fmt.Errorf("adapter: refusing %s order for non-positive amount %s", side, amount)
	}

	quantity := utilities.FormatQuantity(amount, a.appConfig.Trading.QuantityPrecision)
	resp, err := a.client.MarketOrder(ctx, symbol, side, quantity)
	if err != nil {
		return broker.Order{}, err
	}
	return orderFromResponse(resp)
}

// orderFromResponse converts a FULL create-order response into a broker.Order,
// deriving the volume-weighted fill price from the cumulative quote amount.
func orderFromResponse(resp *binance.CreateOrderResponse) (broker.Order, error) {
	executed, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return broker.Order{}, fmt.Errorf("adapter: parse executed quantity %q: %w", resp.ExecutedQuantity, err)
	}
	requested, err := decimal.NewFromString(resp.OrigQuantity)
	if err != nil {
		return broker.Order{}, fmt.Errorf("adapter: parse original quantity %q: %w", resp.OrigQuantity, err)
	}
	cost, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return broker.Order{}, fmt.Errorf("adapter: parse cumulative quote quantity %q: %w", resp.CummulativeQuoteQuantity, err)
	}

	avgPrice := decimal.Zero
	if executed.IsPositive() {
		avgPrice = cost.Div(executed)
	}

	fee := decimal.Zero
	feeAsset := ""
	for _, fill := range resp.Fills {
		commission, cerr := decimal.NewFromString(fill.Commission)
		if cerr != nil {
			return broker.Order{}, fmt.Errorf("adapter: parse fill commission %q: %w", fill.Commission, cerr)
		}
		fee = fee.Add(commission)
		if feeAsset == "" {
			feeAsset = fill.CommissionAsset
		}
	}

	return broker.Order{
		ID:           strconv.FormatInt(resp.OrderID, 10),
		Symbol:       resp.Symbol,
		Side:         mapOrderSide(resp.Side),
		Status:       mapOrderStatus(resp.Status),
		RequestedVol: requested,
		ExecutedVol:  executed,
		AvgFillPrice: avgPrice,
		Cost:         cost,
		Fee:          fee,
		FeeAsset:     feeAsset,
		TimePlaced:   time.UnixMilli(resp.TransactTime),
	}, nil
}

func mapOrderSide(side binance.SideType) string {
	switch side {
	case binance.SideTypeBuy:
		return broker.SideBuy
	case binance.SideTypeSell:
		return broker.SideSell
	default:
		return string(side)
	}
}

func mapOrderStatus(status binance.OrderStatusType) string {
	switch status {
	case binance.OrderStatusTypeFilled:
		return broker.StatusClosed
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		return broker.StatusOpen
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeRejected, binance.OrderStatusTypeExpired:
		return broker.StatusCanceled
	default:
		return broker.StatusOpen
	}
}
