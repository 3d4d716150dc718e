package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/utilities"
)

// CheckLiquidity reports whether the resting ask volume near the current
// price can absorb a buy-back of the required amount. Only asks priced at or
// below currentPrice + liquidityBuffer count. A missing order book fails
// closed: no depth data, no buy.
//
// With no liquidity buffer configured the check is disabled and always
// passes.
func CheckLiquidity(cfg utilities.TradingConfig, snap MarketSnapshot, required decimal.Decimal) (bool, string) {
	if cfg.LiquidityBuffer <= 0 {
		return true, "liquidity check disabled"
	}
	if len(snap.Asks) == 0 {
		return false, "Hold: order book unavailable, liquidity check fails closed"
	}

	maxPrice := snap.Price.Add(decimal.NewFromFloat(cfg.LiquidityBuffer))
	available := decimal.Zero
	for _, ask := range snap.Asks {
		if ask.Price.GreaterThan(maxPrice) {
			break // Asks are sorted low to high
		}
		available = available.Add(ask.Volume)
	}

	if available.LessThan(required) {
		return false, fmt.Sprintf("Hold: ask volume %s within %s of price covers less than the %s needed", available, maxPrice, required)
	}
	return true, fmt.Sprintf("liquidity ok: %s available at or below %s", available, maxPrice)
}
