// File: pkg/broker/binance/bclient.go
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/AndreyZakrevsky/btt/utilities"
)

const (
	defaultRateLimitPerSec = 5
	defaultRateBurst       = 10
	defaultTimeoutSec      = 15
)

// Client is a thin, rate-limited wrapper around the Binance REST SDK. It
// returns raw SDK payloads; the Adapter is responsible for converting them
// into broker types.
type Client struct {
	api     *binance.Client
	cfg     *utilities.BinanceConfig
	limiter *rate.Limiter
	logger  *utilities.Logger
}

func NewClient(appCfg *utilities.BinanceConfig, httpClient *http.Client, logger *utilities.Logger) *Client {
	if appCfg == nil {
		panic("Binance Client requires non-nil BinanceConfig")
	}

	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("Binance.NewClient: Logger fallback used.")
	}

	timeoutSec := appCfg.RequestTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = defaultTimeoutSec
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		}
	}

	perSec := appCfg.RateLimitPerSec
	if perSec <= 0 {
		perSec = defaultRateLimitPerSec
	}
	burst := appCfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	api := binance.NewClient(appCfg.APIKey, appCfg.APISecret)
	api.HTTPClient = httpClient
	if appCfg.BaseURL != "" {
		api.BaseURL = appCfg.BaseURL
	}

	return &Client{
		api:     api,
		cfg:     appCfg,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		logger:  logger,
	}
}

// LastPrice fetches the last traded price for a symbol as reported by the
// exchange, still in its string form.
func (c *Client) LastPrice(ctx context.Context, symbol string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("binance: rate limiter wait for price: %w", err)
	}
	c.logger.LogDebug("Binance LastPrice: symbol=%s", symbol)

	prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("binance: fetch price for %s: %w", symbol, err)
	}
	for _, p := range prices {
		if strings.EqualFold(p.Symbol, symbol) {
			return p.Price, nil
		}
	}
	return "", fmt.Errorf("binance: price for %s missing from response", symbol)
}

// FreeBalance fetches the account balance entry for a single asset. A missing
// entry is reported as a zero balance, not an error: Binance omits assets the
// account has never touched.
func (c *Client) FreeBalance(ctx context.Context, asset string) (binance.Balance, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return binance.Balance{}, fmt.Errorf("binance: API key or secret not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return binance.Balance{}, fmt.Errorf("binance: rate limiter wait for balance: %w", err)
	}
	c.logger.LogDebug("Binance FreeBalance: asset=%s", asset)

	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return binance.Balance{}, fmt.Errorf("binance: fetch account for %s balance: %w", asset, err)
	}
	for _, b := range account.Balances {
		if strings.EqualFold(b.Asset, asset) {
			return b, nil
		}
	}
	return binance.Balance{Asset: strings.ToUpper(asset), Free: "0", Locked: "0"}, nil
}

// Depth fetches the order book for a symbol. Binance accepts only a fixed set
// of limit values; the SDK passes ours through, so callers should stick to
// 5, 10, 20, 50, 100.
func (c *Client) Depth(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("binance: rate limiter wait for depth: %w", err)
	}
	c.logger.LogDebug("Binance Depth: symbol=%s limit=%d", symbol, limit)

	depth, err := c.api.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch depth for %s: %w", symbol, err)
	}
	return depth, nil
}

// MarketOrder submits a market order and returns the FULL response, which
// carries the individual fills needed for fee accounting.
func (c *Client) MarketOrder(ctx context.Context, symbol string, side binance.SideType, quantity string) (*binance.CreateOrderResponse, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, fmt.Errorf("binance: API key or secret not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("binance: rate limiter wait for order: %w", err)
	}
	c.logger.LogDebug("Binance MarketOrder: symbol=%s side=%s qty=%s", symbol, side, quantity)

	resp, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(quantity).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: place %s market order for %s: %w", side, symbol, err)
	}
	return resp, nil
}
