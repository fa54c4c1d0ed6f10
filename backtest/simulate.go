package backtest

import (
	"fmt"
	"math"
)

// maxEntryCashFraction caps a single entry at half of the free cash.
const maxEntryCashFraction = 0.5

type account struct {
	cash       float64
	qty        int64
	entryPrice float64
}

// Simulate executes the final signal series bar by bar at the close. Every bar yields
// exactly one equity point, recorded after that bar's execution; an open position is
// force-liquidated on the last bar so every run ends in cash.
//
// investmentCap <= 0 means no cap beyond the half-cash rule.
func Simulate(signals []SignalBar, initialCapital, feeRate, investmentCap float64) ([]Trade, []EquityPoint, error) {
	if err := (RunParams{InitialCapital: initialCapital, FeeRate: feeRate}).Validate(); err != nil {
		return nil, nil, err
	}
	if math.IsNaN(investmentCap) || math.IsInf(investmentCap, 0) {
		return nil, nil, fmt.Errorf("%w: investment cap must be finite, got %v", ErrInvalidParameters, investmentCap)
	}
	if investmentCap <= 0 {
		investmentCap = initialCapital
	}

	acct := account{cash: initialCapital}
	trades := make([]Trade, 0)
	curve := make([]EquityPoint, 0, len(signals))

	for i, sb := range signals {
		price := sb.Close

		switch sb.Position {
		case Enter:
			if acct.qty == 0 && acct.cash > 0 {
				if t, ok := acct.buy(sb, investmentCap, feeRate); ok {
					trades = append(trades, t)
				}
			}
		case Exit:
			if acct.qty > 0 {
				trades = append(trades, acct.sell(sb, feeRate, SideSell, exitReason(sb)))
			}
		}

		if i == len(signals)-1 && acct.qty > 0 {
			trades = append(trades, acct.sell(sb, feeRate, SideForcedLiquidation, "end_of_backtest"))
		}

		holdings := float64(acct.qty) * price
		curve = append(curve, EquityPoint{
			Date:          sb.Time,
			Cash:          acct.cash,
			PositionValue: holdings,
			TotalValue:    acct.cash + holdings,
		})
	}

	return trades, curve, nil
}

func (a *account) buy(sb SignalBar, investmentCap, feeRate float64) (Trade, bool) {
	price := sb.Close
	if price <= 0 {
		return Trade{}, false
	}
	amount := math.Min(investmentCap, maxEntryCashFraction*a.cash)
	qty := int64(math.Floor(amount / (price * (1 + feeRate))))
	if qty <= 0 {
		return Trade{}, false
	}

	cost := float64(qty) * price
	fee := cost * feeRate
	total := cost + fee
	if total > a.cash {
		return Trade{}, false
	}

	a.cash -= total
	a.qty += qty
	a.entryPrice = price

	reason := sb.Reason
	if reason == "" {
		reason = "entry_signal"
	}
	return Trade{
		Date:     sb.Time,
		Side:     SideBuy,
		Price:    price,
		Quantity: qty,
		Amount:   total,
		Fee:      fee,
		Reason:   reason,
	}, true
}

func (a *account) sell(sb SignalBar, feeRate float64, side TradeSide, reason string) Trade {
	price := sb.Close
	qty := a.qty
	proceeds := float64(qty) * price
	fee := proceeds * feeRate
	net := proceeds - fee

	basis := float64(qty) * a.entryPrice * (1 + feeRate)
	profitPct := 0.0
	if basis > 0 {
		profitPct = (net - basis) / basis * 100
	}

	a.cash += net
	a.qty = 0
	a.entryPrice = 0

	return Trade{
		Date:      sb.Time,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Amount:    net,
		Fee:       fee,
		ProfitPct: &profitPct,
		Reason:    reason,
	}
}

func exitReason(sb SignalBar) string {
	if sb.Reason != "" {
		return sb.Reason
	}
	return "exit_signal"
}
