package backtest

type overlayState struct {
	long       bool
	entryPrice float64
}

// ApplyExits folds the take-profit/stop-loss overlay over a raw signal series and
// returns the final series. Thresholds are percentages; the stop loss is a magnitude
// applied below the entry price. The input slice is left untouched.
//
// Enter while long and Exit while flat are dropped to Hold, so the output only carries
// transitions the simulator can act on.
func ApplyExits(signals []SignalBar, takeProfitPct, stopLossPct float64) []SignalBar {
	out := make([]SignalBar, len(signals))
	tp := takeProfitPct / 100
	sl := -stopLossPct / 100

	var st overlayState
	for i, sb := range signals {
		sb, st = exitStep(sb, st, tp, sl)
		out[i] = sb
	}
	return out
}

func exitStep(sb SignalBar, st overlayState, tp, sl float64) (SignalBar, overlayState) {
	switch {
	case !st.long && sb.Position == Enter:
		return sb, overlayState{long: true, entryPrice: sb.Close}
	case !st.long:
		if sb.Position == Exit {
			sb.Position, sb.Reason = Hold, ""
		}
		return sb, st
	case sb.Position == Exit:
		return sb, overlayState{}
	case sb.Position == Enter:
		// no pyramiding: the bar is treated as a hold
		sb.Position, sb.Reason = Hold, ""
	}

	if st.entryPrice <= 0 {
		return sb, st
	}
	unrealized := (sb.Close - st.entryPrice) / st.entryPrice
	switch {
	case unrealized >= tp:
		sb.Position, sb.Reason = Exit, "take_profit"
		return sb, overlayState{}
	case unrealized <= sl:
		sb.Position, sb.Reason = Exit, "stop_loss"
		return sb, overlayState{}
	}
	return sb, st
}
