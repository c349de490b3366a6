package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Alias1177/insighthub/models"
)

// Stats summarises a run. Percentages are in percent units; ProfitFactor is
// 0 when there are no losing trades.
type Stats struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ReturnPct        float64   `json:"return_pct"`
	BuyHoldReturnPct float64   `json:"buy_hold_return_pct"`
	MaxDrawdownPct   float64   `json:"max_drawdown_pct"`
	WinRatePct       float64   `json:"win_rate_pct"`
	Trades           int       `json:"trades"`
	BestTradePct     float64   `json:"best_trade_pct"`
	WorstTradePct    float64   `json:"worst_trade_pct"`
	AvgTradePct      float64   `json:"avg_trade_pct"`
	ProfitFactor     float64   `json:"profit_factor"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	ExposurePct      float64   `json:"exposure_pct"`
	EquityFinal      float64   `json:"equity_final"`
	EquityPeak       float64   `json:"equity_peak"`
}

func computeStats(cash float64, candles []models.Candle, curve []EquityPoint, trades []Trade, exposed int) Stats {
	first, last := candles[0], candles[len(candles)-1]
	st := Stats{
		Start:       first.Timestamp,
		End:         last.Timestamp,
		Trades:      len(trades),
		ExposurePct: float64(exposed) / float64(len(candles)) * 100,
	}

	final := curve[len(curve)-1].Equity
	st.EquityFinal = final
	if cash > 0 {
		st.ReturnPct = (final - cash) / cash * 100
	}
	if first.Close > 0 {
		st.BuyHoldReturnPct = (last.Close - first.Close) / first.Close * 100
	}

	equities := make([]float64, len(curve))
	for i, p := range curve {
		equities[i] = p.Equity
		st.EquityPeak = math.Max(st.EquityPeak, p.Equity)
		st.MaxDrawdownPct = math.Max(st.MaxDrawdownPct, p.DrawdownPct)
	}
	st.SharpeRatio = sharpe(equities)

	if len(trades) == 0 {
		return st
	}

	var wins int
	var grossProfit, grossLoss, sumReturn float64
	st.BestTradePct = math.Inf(-1)
	st.WorstTradePct = math.Inf(1)
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else {
			grossLoss -= t.PnL
		}
		sumReturn += t.ReturnPct
		st.BestTradePct = math.Max(st.BestTradePct, t.ReturnPct)
		st.WorstTradePct = math.Min(st.WorstTradePct, t.ReturnPct)
	}
	st.WinRatePct = float64(wins) / float64(len(trades)) * 100
	st.AvgTradePct = sumReturn / float64(len(trades))
	if grossLoss > 0 {
		st.ProfitFactor = grossProfit / grossLoss
	}
	return st
}

// sharpe annualises the mean daily equity return over its sample deviation
func sharpe(equity []float64) float64 {
	if len(equity) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}

	m := mean(returns)
	sd := stdDev(returns, m)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(252)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return math.Sqrt(sumSquaredDiff / float64(len(values)-1))
}

// FormatResults creates a human-readable summary of a run
func FormatResults(res *Result) string {
	if res == nil {
		return "No backtest results available"
	}
	st := res.Stats

	var b strings.Builder
	b.WriteString("\n===== BACKTEST RESULTS =====\n")
	fmt.Fprintf(&b, "Strategy: %s\n", res.Strategy)
	fmt.Fprintf(&b, "Period: %s .. %s\n", st.Start.Format(models.DateLayout), st.End.Format(models.DateLayout))
	fmt.Fprintf(&b, "Return: %.2f%% (buy & hold %.2f%%)\n", st.ReturnPct, st.BuyHoldReturnPct)
	fmt.Fprintf(&b, "Final equity: %.2f (peak %.2f)\n", st.EquityFinal, st.EquityPeak)
	fmt.Fprintf(&b, "Maximum drawdown: %.2f%%\n", st.MaxDrawdownPct)
	fmt.Fprintf(&b, "Exposure: %.2f%%\n", st.ExposurePct)
	fmt.Fprintf(&b, "Sharpe ratio: %.2f\n", st.SharpeRatio)
	fmt.Fprintf(&b, "Total trades: %d\n", st.Trades)
	if st.Trades > 0 {
		fmt.Fprintf(&b, "Win rate: %.2f%%\n", st.WinRatePct)
		fmt.Fprintf(&b, "Best / worst / avg trade: %.2f%% / %.2f%% / %.2f%%\n",
			st.BestTradePct, st.WorstTradePct, st.AvgTradePct)
		fmt.Fprintf(&b, "Profit factor: %.2f\n", st.ProfitFactor)
	}
	return b.String()
}
