package scoring

import (
	"math"
	"testing"

	"github.com/Alias1177/insighthub/models"
)

func company(ticker string, pe, ps, margin *float64) models.Fundamentals {
	return models.Fundamentals{Ticker: ticker, TrailingPE: pe, PriceToSales: ps, ProfitMargins: margin}
}

func TestScore(t *testing.T) {
	rows := []models.Fundamentals{
		company("EXP", models.Float(40), models.Float(10), models.Float(0.10)),
		company("CHEAP", models.Float(10), models.Float(2), models.Float(0.30)),
		company("MID", nil, models.Float(6), models.Float(0.20)),
	}

	got := Score(rows, DefaultWeights)

	order := []string{"CHEAP", "MID", "EXP"}
	for i, want := range order {
		if got[i].Ticker != want {
			t.Errorf("Score()[%d] = %s, want %s", i, got[i].Ticker, want)
		}
	}

	// CHEAP is best on every metric: 0.2 + 0.1 + 0.4
	if math.Abs(got[0].Score-0.7) > 1e-9 {
		t.Errorf("CHEAP score = %v, want 0.7", got[0].Score)
	}
	if got[2].Score != 0 {
		t.Errorf("EXP score = %v, want 0", got[2].Score)
	}
	// MID's missing P/E takes the median (25), halfway between 10 and 40
	if math.Abs(got[1].Contributions["trailingPE"]-0.1) > 1e-9 {
		t.Errorf("MID P/E contribution = %v, want 0.1", got[1].Contributions["trailingPE"])
	}
}

func TestScoreEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		rows []models.Fundamentals
		want []float64
	}{
		{
			name: "constant column scales to zero",
			rows: []models.Fundamentals{
				company("A", nil, nil, models.Float(0.2)),
				company("B", nil, nil, models.Float(0.2)),
			},
			want: []float64{0, 0},
		},
		{
			name: "all missing contributes nothing",
			rows: []models.Fundamentals{
				company("A", nil, nil, nil),
			},
			want: []float64{0},
		},
		{
			name: "single negative weight inverts",
			rows: []models.Fundamentals{
				company("A", models.Float(5), nil, nil),
				company("B", models.Float(15), nil, nil),
			},
			want: []float64{0.2, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.rows, DefaultWeights)
			for i := range tt.want {
				if math.Abs(got[i].Score-tt.want[i]) > 1e-9 {
					t.Errorf("Score()[%d] = %v, want %v", i, got[i].Score, tt.want[i])
				}
			}
		})
	}
}

func TestScoreTieBreaksByTicker(t *testing.T) {
	got := Score([]models.Fundamentals{{Ticker: "ZZZ"}, {Ticker: "AAA"}}, DefaultWeights)
	if got[0].Ticker != "AAA" {
		t.Errorf("Score()[0] = %s, want AAA", got[0].Ticker)
	}
}
