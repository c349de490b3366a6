package analyze

import "github.com/Alias1177/insighthub/models"

// overboughtRSI separates SELL from HOLD when the model is not bullish
const overboughtRSI = 70

// DeriveSignal turns a model vote into a trade signal. A bullish vote is a
// BUY. A bearish vote is only a SELL when RSI says the market is overbought;
// otherwise the position is held. The RSI tie-break is a deliberate
// overbought heuristic, not a model output.
func DeriveSignal(output int, rsi float64) models.Signal {
	if output == 1 {
		return models.SignalBuy
	}
	if rsi > overboughtRSI {
		return models.SignalSell
	}
	return models.SignalHold
}
