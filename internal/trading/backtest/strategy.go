package backtest

import (
	"fmt"
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/Alias1177/insighthub/models"
)

// Broker is the order surface a strategy sees. Position is the signed size
// of the open position, 0 when flat.
type Broker interface {
	Position() float64
	Buy()
	Sell()
	Close()
}

// Strategy decides orders bar by bar
type Strategy interface {
	Name() string
	// Warmup is the number of bars consumed before the first decision
	Warmup() int
	Init(candles []models.Candle) error
	Next(i int, b Broker)
}

// SMACross goes long when the short SMA crosses above the long one and
// reverses to short on the opposite cross
type SMACross struct {
	Short int
	Long  int

	short techan.Indicator
	long  techan.Indicator
}

// NewSMACross returns the 10/30 crossover
func NewSMACross() *SMACross {
	return &SMACross{Short: 10, Long: 30}
}

func (s *SMACross) Name() string { return fmt.Sprintf("sma_cross_%d_%d", s.Short, s.Long) }

func (s *SMACross) Warmup() int { return s.Long }

func (s *SMACross) Init(candles []models.Candle) error {
	if s.Short <= 0 || s.Long <= s.Short {
		return fmt.Errorf("invalid windows %d/%d", s.Short, s.Long)
	}
	series, err := timeSeries(candles)
	if err != nil {
		return err
	}
	closes := techan.NewClosePriceIndicator(series)
	s.short = techan.NewSimpleMovingAverage(closes, s.Short)
	s.long = techan.NewSimpleMovingAverage(closes, s.Long)
	return nil
}

func (s *SMACross) Next(i int, b Broker) {
	if i < s.Long {
		return
	}
	prevShort, prevLong := s.short.Calculate(i-1).Float(), s.long.Calculate(i-1).Float()
	curShort, curLong := s.short.Calculate(i).Float(), s.long.Calculate(i).Float()

	switch {
	case prevShort < prevLong && curShort > curLong:
		b.Close()
		b.Buy()
	case prevShort > prevLong && curShort < curLong:
		b.Close()
		b.Sell()
	}
}

// Decider maps a bar index to a trade direction: +1 long, -1 short, 0 hold
type Decider interface {
	Decide(i int, candles []models.Candle) int
}

// ModelStrategy is the extension point for model-driven rules. Until a
// decision rule is settled it never places an order.
type ModelStrategy struct {
	Decider Decider

	candles []models.Candle
}

func (m *ModelStrategy) Name() string { return "model" }

func (m *ModelStrategy) Warmup() int { return 1 }

func (m *ModelStrategy) Init(candles []models.Candle) error {
	m.candles = candles
	return nil
}

// Next holds on every bar
func (m *ModelStrategy) Next(int, Broker) {}

func timeSeries(candles []models.Candle) (*techan.TimeSeries, error) {
	series := techan.NewTimeSeries()
	for i, c := range candles {
		candle := techan.NewCandle(techan.NewTimePeriod(c.Timestamp, time.Nanosecond))
		candle.OpenPrice = big.NewDecimal(c.Open)
		candle.ClosePrice = big.NewDecimal(c.Close)
		candle.MaxPrice = big.NewDecimal(c.High)
		candle.MinPrice = big.NewDecimal(c.Low)
		candle.Volume = big.NewDecimal(float64(c.Volume))
		if !series.AddCandle(candle) {
			return nil, fmt.Errorf("bar %d at %s is out of order", i, c.Timestamp.Format(time.RFC3339))
		}
	}
	return series, nil
}
