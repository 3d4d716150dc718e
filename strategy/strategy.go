package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/pkg/broker"
	"github.com/AndreyZakrevsky/btt/storage"
	"github.com/AndreyZakrevsky/btt/utilities"
)

// Signal directions.
const (
	DirectionBuy  = "buy"
	DirectionHold = "hold"
	DirectionSell = "sell"
)

var (
	hundred       = decimal.NewFromInt(100)
	clearanceStep = decimal.RequireFromString("0.1")
)

// Signal is the outcome of one evaluation: what to do, how much, and why.
type Signal struct {
	Direction string
	Amount    decimal.Decimal
	Reason    string
}

// MarketSnapshot is the market data gathered for a single tick. PriceValid is
// false when the price fetch failed; Asks is nil when the depth fetch failed
// or the liquidity check is disabled.
type MarketSnapshot struct {
	Symbol      string
	Price       decimal.Decimal
	PriceValid  bool
	BaseBalance decimal.Decimal
	Asks        []broker.OrderBookLevel
	Time        time.Time
}

// Evaluate runs the decision rule for one tick. It is a pure function of the
// trading parameters, the persisted state, and the snapshot; it performs no
// I/O and mutates nothing. Rules are checked in order, first match wins:
//
//  1. no price -> hold
//  2. no open position -> sell the fixed notional (bootstrap)
//  3. price above average -> sell when clearance, balance, and the held-volume
//     cap allow
//  4. price below average -> buy the held amount back when the buy clearance
//     and the liquidity check allow
func Evaluate(cfg utilities.TradingConfig, state storage.TradeState, snap MarketSnapshot) Signal {
	if !snap.PriceValid {
		return hold("Hold: no market price available this tick")
	}

	if !state.HasPosition() {
		return Signal{
			Direction: DirectionSell,
			Amount:    decimal.NewFromFloat(cfg.FixedNotional),
			Reason:    fmt.Sprintf("Sell: no open position, bootstrapping %v %s at market", cfg.FixedNotional, cfg.BaseAsset),
		}
	}

	diff := snap.Price.Sub(state.AverageAcquisitionPrice)
	switch {
	case diff.IsPositive():
		return evaluateSell(cfg, state, snap)
	case diff.IsNegative():
		return evaluateBuy(cfg, state, snap)
	default:
		return hold("Hold: price equals average acquisition price")
	}
}

// EffectiveSellClearance widens the configured sell clearance by 0.1 for
// every full 100 units held, slowing re-entry as the position grows. With
// adaptive clearance disabled it is the flat configured value.
func EffectiveSellClearance(cfg utilities.TradingConfig, heldAmount decimal.Decimal) decimal.Decimal {
	base := decimal.NewFromFloat(cfg.SellClearance)
	if !cfg.AdaptiveClearance {
		return base
	}
	steps := heldAmount.Div(hundred).Floor()
	return base.Add(steps.Mul(clearanceStep))
}

func evaluateSell(cfg utilities.TradingConfig, state storage.TradeState, snap MarketSnapshot) Signal {
	notional := decimal.NewFromFloat(cfg.FixedNotional)

	if cfg.MaxHeldVolume > 0 {
		maxHeld := decimal.NewFromFloat(cfg.MaxHeldVolume)
		if state.HeldAmount.GreaterThanOrEqual(maxHeld) {
			return hold(fmt.Sprintf("Hold: held volume %s at configured cap %s", state.HeldAmount, maxHeld))
		}
	}
	if snap.BaseBalance.LessThanOrEqual(notional) {
		return hold(fmt.Sprintf("Hold: base balance %s cannot cover order size %s", snap.BaseBalance, notional))
	}

	clearance := EffectiveSellClearance(cfg, state.HeldAmount)
	threshold := state.AverageAcquisitionPrice.Add(clearance)
	if !snap.Price.GreaterThan(threshold) {
		return hold(fmt.Sprintf("Hold: price %s inside sell clearance band (threshold %s)", snap.Price, threshold))
	}

	return Signal{
		Direction: DirectionSell,
		Amount:    notional,
		Reason:    fmt.Sprintf("Sell: price %s above threshold %s (avg %s + clearance %s)", snap.Price, threshold, state.AverageAcquisitionPrice, clearance),
	}
}

func evaluateBuy(cfg utilities.TradingConfig, state storage.TradeState, snap MarketSnapshot) Signal {
	trigger := state.AverageAcquisitionPrice.Sub(decimal.NewFromFloat(cfg.BuyClearance))
	if snap.Price.GreaterThan(trigger) {
		return hold(fmt.Sprintf("Hold: price %s above buy trigger %s", snap.Price, trigger))
	}
	if !state.HeldAmount.IsPositive() {
		return hold("Hold: nothing held to buy back")
	}

	if ok, reason := CheckLiquidity(cfg, snap, state.HeldAmount); !ok {
		return hold(reason)
	}

	return Signal{
		Direction: DirectionBuy,
		Amount:    state.HeldAmount,
		Reason:    fmt.Sprintf("Buy: price %s at or below trigger %s, buying back %s %s", snap.Price, trigger, state.HeldAmount, cfg.BaseAsset),
	}
}

func hold(reason string) Signal {
	return Signal{Direction: DirectionHold, Reason: reason}
}
