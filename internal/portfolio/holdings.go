package portfolio

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/insighthub/models"
)

// Holding is a quantity of one ticker typed in by the user
type Holding struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
}

// ValuedHolding is a holding priced at the current close
type ValuedHolding struct {
	Holding
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
	Allocation float64 `json:"allocation"`
}

// Valuation is the priced holdings list
type Valuation struct {
	Holdings []ValuedHolding `json:"holdings"`
	Total    float64         `json:"total"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ParseHoldings reads one "TICKER,QUANTITY" per line. Blank and # lines are
// ignored; malformed lines are skipped with a warning.
func ParseHoldings(text string) ([]Holding, []string) {
	var holdings []Holding
	var warnings []string

	sc := bufio.NewScanner(strings.NewReader(text))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			warnings = append(warnings, fmt.Sprintf("line %d: expected TICKER,QUANTITY: %q", n, line))
			continue
		}
		ticker := models.NormalizeTicker(parts[0])
		qty, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if ticker == "" || err != nil || qty <= 0 {
			warnings = append(warnings, fmt.Sprintf("line %d: invalid holding %q", n, line))
			continue
		}
		holdings = append(holdings, Holding{Ticker: ticker, Quantity: qty})
	}
	return holdings, warnings
}

// Valuate prices each holding. A missing price values the holding at 0.
func (l *Ledger) Valuate(ctx context.Context, holdings []Holding) Valuation {
	out := Valuation{Holdings: make([]ValuedHolding, 0, len(holdings))}

	var total decimal.Decimal
	values := make([]decimal.Decimal, len(holdings))
	for i, h := range holdings {
		vh := ValuedHolding{Holding: h}
		if price, err := l.quotes.CurrentPrice(ctx, h.Ticker); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: no price, valued at 0", h.Ticker))
			l.logger.Warn().Err(err).Str("ticker", h.Ticker).Msg("holding price unavailable")
		} else {
			vh.Price = price
			values[i] = decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(h.Quantity))
			vh.Value = values[i].InexactFloat64()
		}
		total = total.Add(values[i])
		out.Holdings = append(out.Holdings, vh)
	}

	out.Total = total.InexactFloat64()
	if total.IsPositive() {
		for i := range out.Holdings {
			out.Holdings[i].Allocation = values[i].Div(total).InexactFloat64()
		}
	}
	return out
}
