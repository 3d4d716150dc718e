package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/notification/telegram"
	"github.com/AndreyZakrevsky/btt/pkg/broker"
	binanceBroker "github.com/AndreyZakrevsky/btt/pkg/broker/binance"
	"github.com/AndreyZakrevsky/btt/storage"
	"github.com/AndreyZakrevsky/btt/strategy"
	"github.com/AndreyZakrevsky/btt/utilities"
)

const defaultHTTPTimeoutSec = 15

// Run wires the components together, verifies the exchange connection, and
// drives the polling loop until ctx is cancelled. Every dependency failure
// before the loop starts is fatal; failures inside the loop only cost the
// current tick.
func Run(ctx context.Context, cfg *utilities.AppConfig, logger *utilities.Logger) error {
	if cfg.Trading.BaseAsset == "" || cfg.Trading.QuoteAsset == "" {
		return errors.New("pre-flight check failed: trading.base_asset and trading.quote_asset must be configured")
	}
	if cfg.Trading.TickIntervalSec <= 0 {
		return errors.New("pre-flight check failed: trading.tick_interval_sec must be a positive number of seconds")
	}
	if cfg.Trading.FixedNotional <= 0 {
		return errors.New("pre-flight check failed: trading.fixed_notional must be positive")
	}
	if cfg.Binance.APIKey == "" || cfg.Binance.APISecret == "" {
		return errors.New("pre-flight check failed: binance.api_key and binance.api_secret must be set (dry run still reads balances)")
	}

	logger.LogInfo("AppRun: Starting pre-flight checks...")

	telegramClient, err := telegram.NewClient(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize Telegram client: %w", err)
	}

	store, err := storage.NewStateStore(cfg.State, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize state store: %w", err)
	}
	if _, err := store.Read(); err != nil {
		return fmt.Errorf("pre-flight check failed: could not read persisted position record: %w", err)
	}

	journal, err := storage.NewTradeJournal(cfg.DB)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize trade journal: %w", err)
	}
	defer journal.Close()

	timeoutSec := cfg.Binance.RequestTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = defaultHTTPTimeoutSec
	}
	sharedHTTPClient := &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}

	logger.LogInfo("Pre-Flight: Initializing and verifying broker (Binance)...")
	adapter, err := binanceBroker.NewAdapter(cfg, sharedHTTPClient, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize Binance adapter: %w", err)
	}

	symbol := cfg.Trading.Symbol()
	lastPrice, err := adapter.GetLastPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not fetch %s ticker: %w", symbol, err)
	}
	baseBalance, err := adapter.GetBalance(ctx, cfg.Trading.BaseAsset)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not get initial %s balance. Check API keys and permissions: %w", cfg.Trading.BaseAsset, err)
	}
	logger.LogInfo("Pre-Flight: Broker verification passed. %s last price %s, free %s balance %s.",
		symbol, lastPrice, cfg.Trading.BaseAsset, baseBalance.Available)

	// Without a command channel there is nobody to send /start, so trading
	// begins enabled. With Telegram wired up it waits for the operator.
	startEnabled := !telegramClient.Enabled()
	session := NewSession(cfg, adapter, store, journal, telegramClient, logger, startEnabled)

	telegramClient.RegisterCommands(ctx, session)
	go telegramClient.Run()
	defer telegramClient.Shutdown()

	telegramClient.SendMessage(fmt.Sprintf("✅ %s v%s starting up\nPair: %s | Dry run: %v\n%s\nTrading is disabled, send /start to begin.",
		cfg.AppName, cfg.Version, symbol, cfg.Trading.DryRun, formatParams(cfg.Trading)))
	defer telegramClient.SendMessage(fmt.Sprintf("🛑 %s shutting down", cfg.AppName))

	loopInterval := time.Duration(cfg.Trading.TickIntervalSec) * time.Second
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	logger.LogInfo("AppRun: Pre-flight checks complete. Polling %s every %s (trading enabled: %v).", symbol, loopInterval, startEnabled)
	for {
		select {
		case <-ctx.Done():
			logger.LogInfo("AppRun: Context cancelled, exiting trading loop.")
			return nil
		case <-ticker.C:
			session.processTick(ctx)
		}
	}
}

// processTick runs one poll iteration: snapshot the market, evaluate the
// decision rules against the persisted record, and settle at most one order.
// It never returns an error; anything that goes wrong defers to the next
// tick.
func (s *Session) processTick(ctx context.Context) {
	defer s.tickDone()
	tick := s.Ticks() + 1

	if !s.Enabled() {
		s.logger.LogDebug("Tick %d: trading disabled, skipping.", tick)
		return
	}

	params := s.Params()
	symbol := params.Symbol()

	state, err := s.store.Read()
	if err != nil {
		s.logger.LogError("Tick %d: could not read persisted position record, skipping: %v", tick, err)
		return
	}

	balance, err := s.broker.GetBalance(ctx, params.BaseAsset)
	if err != nil {
		s.logger.LogWarn("Tick %d: %s balance unavailable, holding: %v", tick, params.BaseAsset, err)
		return
	}

	snap := strategy.MarketSnapshot{
		Symbol:      symbol,
		BaseBalance: balance.Available,
		Time:        time.Now().UTC(),
	}
	price, err := s.broker.GetLastPrice(ctx, symbol)
	if err != nil {
		s.logger.LogWarn("Tick %d: %s ticker unavailable, holding: %v", tick, symbol, err)
	} else {
		snap.Price = price
		snap.PriceValid = true
		s.observePrice(price)
	}

	// The order book is only consulted when a buy-back is in reach this
	// tick; fetch failures leave Asks nil so the check fails closed.
	if params.LiquidityBuffer > 0 && snap.PriceValid && state.HasPosition() && snap.Price.LessThan(state.AverageAcquisitionPrice) {
		asks, err := s.broker.GetOrderBookAsks(ctx, symbol, params.DepthLevels)
		if err != nil {
			s.logger.LogWarn("Tick %d: %s order book unavailable: %v", tick, symbol, err)
		} else {
			snap.Asks = asks
		}
	}

	signal := strategy.Evaluate(params, state, snap)
	s.logger.LogInfo("Tick %d [%s%s%s]: %s%s%s", tick,
		utilities.ColorYellow, symbol, utilities.ColorReset,
		directionColor(signal.Direction), signal.Reason, utilities.ColorReset)

	if signal.Direction == strategy.DirectionHold {
		return
	}

	// A /stop or /set may have landed while the snapshot was being fetched.
	if !s.Enabled() {
		s.logger.LogWarn("Tick %d: trading was disabled mid-tick, dropping %s signal.", tick, signal.Direction)
		return
	}

	s.execute(ctx, params, state, snap, signal)
}

// execute places (or, in dry run, fabricates) the market order for the
// signal and settles it. Order failures and unfilled orders leave the
// persisted record untouched.
func (s *Session) execute(ctx context.Context, params utilities.TradingConfig, state storage.TradeState, snap strategy.MarketSnapshot, signal strategy.Signal) {
	var (
		order broker.Order
		err   error
	)

	if params.DryRun {
		order = s.simulateFill(params, snap, signal)
	} else {
		switch signal.Direction {
		case strategy.DirectionSell:
			order, err = s.broker.PlaceMarketSell(ctx, snap.Symbol, signal.Amount)
		case strategy.DirectionBuy:
			order, err = s.broker.PlaceMarketBuy(ctx, snap.Symbol, signal.Amount)
		}
		if err != nil {
			s.logger.LogError("Execute: %s order for %s failed: %v", signal.Direction, snap.Symbol, err)
			s.notifier.SendMessage(fmt.Sprintf("⚠️ %s order for %s failed: %v", strings.ToUpper(signal.Direction), snap.Symbol, err))
			return
		}
	}

	if !order.Closed() {
		s.logger.LogWarn("Execute: order %s for %s not closed (status %s), record untouched.", order.ID, snap.Symbol, order.Status)
		s.notifier.SendMessage(fmt.Sprintf("⚠️ Order %s for %s did not fill! Status: %s", order.ID, snap.Symbol, order.Status))
		return
	}

	switch signal.Direction {
	case strategy.DirectionSell:
		s.settleSell(order)
	case strategy.DirectionBuy:
		s.settleBuy(params, order, state)
	}
}

// settleSell folds the confirmed fill into the persisted record, then
// journals and announces it. A record write failure abandons the tick: the
// fill is reported but nothing else runs.
func (s *Session) settleSell(order broker.Order) {
	state, err := s.store.WriteNew(order.ExecutedVol, order.AvgFillPrice, order.Fee)
	if err != nil {
		s.logger.LogError("Settle: sell %s filled but record write failed, tick abandoned: %v", order.ID, err)
		s.notifier.SendMessage(fmt.Sprintf("⚠️ Sell order %s filled but the position record could not be written: %v", order.ID, err))
		return
	}

	s.journalFill(order, decimal.Zero)
	s.notifier.NotifyOrderFilled(order, fmt.Sprintf("New avg acquisition: %s\nHeld volume: %s",
		state.AverageAcquisitionPrice, state.HeldAmount))
}

// settleBuy clears the persisted record after a confirmed buy-back and
// journals the realized result against the average it closed.
func (s *Session) settleBuy(params utilities.TradingConfig, order broker.Order, prev storage.TradeState) {
	if err := s.store.Clear(); err != nil {
		s.logger.LogError("Settle: buy %s filled but record clear failed, tick abandoned: %v", order.ID, err)
		s.notifier.SendMessage(fmt.Sprintf("⚠️ Buy order %s filled but the position record could not be cleared: %v", order.ID, err))
		return
	}

	profit := prev.AverageAcquisitionPrice.Sub(order.AvgFillPrice).Mul(order.ExecutedVol)
	if strings.EqualFold(order.FeeAsset, params.QuoteAsset) {
		profit = profit.Sub(order.Fee)
	}

	s.journalFill(order, profit)
	s.notifier.NotifyOrderFilled(order, fmt.Sprintf("Position closed against avg %s\nRealized: %s %s",
		prev.AverageAcquisitionPrice, profit, params.QuoteAsset))
}

func (s *Session) journalFill(order broker.Order, profit decimal.Decimal) {
	rec := storage.TradeRecord{
		Symbol:    order.Symbol,
		Side:      order.Side,
		Amount:    order.ExecutedVol,
		Price:     order.AvgFillPrice,
		Fee:       order.Fee,
		Profit:    profit,
		CreatedAt: order.TimePlaced,
	}
	if err := s.journal.RecordTrade(rec); err != nil {
		s.logger.LogError("Journal: could not record %s fill %s: %v", order.Side, order.ID, err)
	}
}

// simulateFill fabricates a closed order at the snapshot price so dry runs
// exercise the full settle path without touching the exchange.
func (s *Session) simulateFill(params utilities.TradingConfig, snap strategy.MarketSnapshot, signal strategy.Signal) broker.Order {
	side := broker.SideSell
	if signal.Direction == strategy.DirectionBuy {
		side = broker.SideBuy
	}
	s.logger.LogWarn("DRY RUN: simulating %s of %s %s at %s.", side, signal.Amount, params.BaseAsset, snap.Price)

	return broker.Order{
		ID:           fmt.Sprintf("dry-%d", time.Now().UnixNano()),
		Symbol:       snap.Symbol,
		Side:         side,
		Status:       broker.StatusClosed,
		RequestedVol: signal.Amount,
		ExecutedVol:  signal.Amount,
		AvgFillPrice: snap.Price,
		Cost:         snap.Price.Mul(signal.Amount),
		Fee:          decimal.Zero,
		TimePlaced:   snap.Time,
	}
}

func directionColor(direction string) string {
	switch direction {
	case strategy.DirectionSell:
		return utilities.ColorRed
	case strategy.DirectionBuy:
		return utilities.ColorCyan
	default:
		return utilities.ColorWhite
	}
}
