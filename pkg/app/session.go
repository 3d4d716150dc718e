package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/notification/telegram"
	"github.com/AndreyZakrevsky/btt/pkg/broker"
	"github.com/AndreyZakrevsky/btt/storage"
	"github.com/AndreyZakrevsky/btt/utilities"
)

// Session carries the state shared between the trading loop and the Telegram
// command handlers: the trading-enabled flag, a live copy of the trading
// parameters, the tick counter, and the last observed price. The loop is the
// only writer of ticks and lastPrice; command handlers mutate the flag and
// the parameters.
type Session struct {
	mu        sync.RWMutex
	enabled   bool
	ticks     uint64
	lastPrice decimal.Decimal
	params    utilities.TradingConfig

	broker   broker.Broker
	store    *storage.StateStore
	journal  *storage.TradeJournal
	notifier *telegram.Client
	logger   *utilities.Logger
}

func NewSession(cfg *utilities.AppConfig, b broker.Broker, store *storage.StateStore, journal *storage.TradeJournal, notifier *telegram.Client, logger *utilities.Logger, enabled bool) *Session {
	return &Session{
		enabled:  enabled,
		params:   cfg.Trading,
		broker:   b,
		store:    store,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
	}
}

// Enabled reports whether the loop should trade this tick. Commands toggle
// it; the loop re-checks it before committing an order.
func (s *Session) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Params returns the current trading parameters. The returned copy stays
// stable for the duration of a tick even if a /set lands mid-flight.
func (s *Session) Params() utilities.TradingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Ticks returns the number of completed loop iterations.
func (s *Session) Ticks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks
}

func (s *Session) tickDone() {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

func (s *Session) observePrice(price decimal.Decimal) {
	s.mu.Lock()
	s.lastPrice = price
	s.mu.Unlock()
}

// --- Commander implementation (Telegram command surface) ---

// Start enables trading.
func (s *Session) Start() string {
	s.mu.Lock()
	s.enabled = true
	params := s.params
	s.mu.Unlock()

	s.logger.LogInfo("Command: trading enabled.")
	return fmt.Sprintf("▶️ Trading enabled for %s.\n%s", params.Symbol(), formatParams(params))
}

// Stop disables trading. An iteration already in flight may still complete
// its order.
func (s *Session) Stop() string {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()

	s.logger.LogInfo("Command: trading disabled.")
	return "⏸ Trading disabled."
}

// Status reports the session, the parameters, and the persisted record. It
// never mutates anything.
func (s *Session) Status() string {
	s.mu.RLock()
	enabled := s.enabled
	ticks := s.ticks
	lastPrice := s.lastPrice
	params := s.params
	s.mu.RUnlock()

	mode := "disabled"
	if enabled {
		mode = "enabled"
	}
	if params.DryRun {
		mode += " (dry run)"
	}

	state, err := s.store.Read()
	if err != nil {
		s.logger.LogError("Command: status could not read persisted state: %v", err)
		return fmt.Sprintf("📊 %s\nTrading: %s\nTicks: %d\n⚠️ state unavailable: %v", params.Symbol(), mode, ticks, err)
	}

	position := "none"
	if state.HasPosition() {
		position = fmt.Sprintf("avg %s, held %s, fees %s",
			state.AverageAcquisitionPrice, state.HeldAmount, state.CumulativeFee)
	}

	return fmt.Sprintf("📊 %s\nTrading: %s\nTicks: %d\nLast price: %s\nPosition: %s\n%s",
		params.Symbol(), mode, ticks, lastPrice, position, formatParams(params))
}

// Reset clears the persisted position record.
func (s *Session) Reset() string {
	if err := s.store.Clear(); err != nil {
		s.logger.LogError("Command: reset failed: %v", err)
		return fmt.Sprintf("⚠️ Reset failed: %v", err)
	}
	s.logger.LogWarn("Command: persisted position record cleared by operator.")
	return "🧹 Position record cleared."
}

// Set updates trading parameters from "key=value" tokens and forces trading
// off; the new values take effect on the next /start. Either every token
// applies or none do.
func (s *Session) Set(payload string) string {
	tokens := strings.Fields(payload)
	if len(tokens) == 0 {
		return "Usage: /set key=value ...\nKeys: sell-clearance, buy-clearance, max-held-volume, notional, liquidity-buffer"
	}

	s.mu.Lock()
	updated := s.params
	s.mu.Unlock()

	var applied []string
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return fmt.Sprintf("⚠️ Malformed token %q, expected key=value. Nothing changed.", token)
		}
		if err := applyParam(&updated, key, value); err != nil {
			return fmt.Sprintf("⚠️ %v. Nothing changed.", err)
		}
		applied = append(applied, token)
	}

	s.mu.Lock()
	s.params = updated
	s.enabled = false
	s.mu.Unlock()

	s.logger.LogWarn("Command: parameters updated (%s), trading stopped.", strings.Join(applied, " "))
	return fmt.Sprintf("🔧 Applied: %s\nTrading stopped; /start to resume with the new values.", strings.Join(applied, " "))
}

// Balance reports the free exchange balances for both sides of the pair.
func (s *Session) Balance(ctx context.Context) string {
	params := s.Params()

	base, err := s.broker.GetBalance(ctx, params.BaseAsset)
	if err != nil {
		s.logger.LogError("Command: balance fetch failed for %s: %v", params.BaseAsset, err)
		return fmt.Sprintf("⚠️ Balance unavailable: %v", err)
	}
	quote, err := s.broker.GetBalance(ctx, params.QuoteAsset)
	if err != nil {
		s.logger.LogError("Command: balance fetch failed for %s: %v", params.QuoteAsset, err)
		return fmt.Sprintf("⚠️ Balance unavailable: %v", err)
	}

	return fmt.Sprintf("💼 Balances\n%s: %s (locked %s)\n%s: %s (locked %s)",
		base.Asset, base.Available, base.Locked,
		quote.Asset, quote.Available, quote.Locked)
}

// History lists the most recent confirmed fills from the journal.
func (s *Session) History(limit int) string {
	records, err := s.journal.RecentTrades(limit)
	if err != nil {
		s.logger.LogError("Command: history query failed: %v", err)
		return fmt.Sprintf("⚠️ History unavailable: %v", err)
	}
	if len(records) == 0 {
		return "No trades recorded yet."
	}

	var b strings.Builder
	b.WriteString("🧾 Recent fills:\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "%s  %s %s %s @ %s  fee %s",
			rec.CreatedAt.Format("2006-01-02 15:04"), strings.ToUpper(rec.Side), rec.Amount, rec.Symbol, rec.Price, rec.Fee)
		if !rec.Profit.IsZero() {
			fmt.Fprintf(&b, "  profit %s", rec.Profit)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Average re-anchors the stored average acquisition price.
func (s *Session) Average(payload string) string {
	raw := strings.TrimSpace(payload)
	if raw == "" {
		return "Usage: /average <price>"
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return fmt.Sprintf("⚠️ %q is not a positive price. Nothing changed.", raw)
	}

	state, err := s.store.WriteUpdate(price)
	if err != nil {
		s.logger.LogError("Command: average update failed: %v", err)
		return fmt.Sprintf("⚠️ Average update failed: %v", err)
	}
	s.logger.LogWarn("Command: average acquisition price re-anchored to %s.", price)
	return fmt.Sprintf("🎯 Average set to %s (held %s unchanged).", state.AverageAcquisitionPrice, state.HeldAmount)
}

func applyParam(params *utilities.TradingConfig, key, value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("value %q for %s is not a number", value, key)
	}
	if f < 0 {
		return fmt.Errorf("value for %s must not be negative", key)
	}

	switch strings.ToLower(strings.TrimSpace(key)) {
	case "sell-clearance":
		params.SellClearance = f
	case "buy-clearance":
		params.BuyClearance = f
	case "max-held-volume":
		params.MaxHeldVolume = f
	case "notional":
		if f == 0 {
			return fmt.Errorf("value for notional must be positive")
		}
		params.FixedNotional = f
	case "liquidity-buffer":
		params.LiquidityBuffer = f
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func formatParams(params utilities.TradingConfig) string {
	return fmt.Sprintf("Params: notional=%v sell-clearance=%v buy-clearance=%v max-held-volume=%v liquidity-buffer=%v adaptive=%v interval=%s",
		params.FixedNotional, params.SellClearance, params.BuyClearance,
		params.MaxHeldVolume, params.LiquidityBuffer, params.AdaptiveClearance,
		time.Duration(params.TickIntervalSec)*time.Second)
}
