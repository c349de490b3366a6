package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/analysis/trend"
	"github.com/Alias1177/insighthub/internal/analyze"
	"github.com/Alias1177/insighthub/internal/app"
	"github.com/Alias1177/insighthub/internal/discovery"
	"github.com/Alias1177/insighthub/internal/portfolio"
	"github.com/Alias1177/insighthub/internal/scheduler"
	"github.com/Alias1177/insighthub/internal/server"
	"github.com/Alias1177/insighthub/internal/trading/backtest"
	"github.com/Alias1177/insighthub/internal/universe"
	"github.com/Alias1177/insighthub/models"
)

// command is one subcommand: its flags, an optional argument check that
// runs before the application is built, and the action itself
type command struct {
	fs         *flag.FlagSet
	configPath string
	check      func(args []string) error
	run        func(ctx context.Context, a *app.App, args []string, out io.Writer) error
}

func newCommand(name, argsUsage string) *command {
	c := &command{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.StringVar(&c.configPath, "config", "", "YAML config file (default $CONFIG_FILE or config.yaml)")
	c.fs.Usage = func() {
		fmt.Fprintf(c.fs.Output(), "usage: insighthub %s [flags] %s\n", name, argsUsage)
		c.fs.PrintDefaults()
	}
	return c
}

var commands = map[string]func() *command{
	"score":       scoreCommand,
	"signal":      signalCommand,
	"scan":        scanCommand,
	"predict":     func() *command { return predictCommand("predict", false) },
	"deep":        func() *command { return predictCommand("deep", true) },
	"discover":    discoverCommand,
	"backtest":    backtestCommand,
	"history":     historyCommand,
	"trade":       tradeCommand,
	"positions":   positionsCommand,
	"valuate":     valuateCommand,
	"predictions": predictionsCommand,
	"reconcile":   reconcileCommand,
	"macro":       macroCommand,
	"serve":       serveCommand,
}

func needArgs(n int, what string) func([]string) error {
	return func(args []string) error {
		if len(args) < n {
			return fmt.Errorf("missing %s: %w", what, errUsage)
		}
		return nil
	}
}

// tickersFromArgs accepts "AAPL MSFT" as well as "AAPL,MSFT"
func tickersFromArgs(args []string) []string {
	return universe.ParseTickerList(strings.Join(args, ","))
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func progressLogger(label string) discovery.Progress {
	return func(done, total int, ticker string) {
		log.Info().Str("scan", label).Int("done", done).Int("total", total).Str("ticker", ticker).Msg("progress")
	}
}

func scoreCommand() *command {
	c := newCommand("score", "TICKER...")
	c.check = needArgs(1, "tickers")
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		scores, err := a.Score(ctx, tickersFromArgs(args))
		if err != nil {
			return err
		}
		for i, s := range scores {
			fmt.Fprintf(out, "%2d. %-8s %.4f", i+1, s.Ticker, s.Score)
			if s.Name != "" {
				fmt.Fprintf(out, "  %s", s.Name)
			}
			fmt.Fprintln(out)
		}
		return nil
	}
	return c
}

func algoFlag(c *command) *string {
	return c.fs.String("algo", "", "classifier: XGBoost, LightGBM or RandomForest (default from config)")
}

func signalCommand() *command {
	c := newCommand("signal", "TICKER")
	algo := algoFlag(c)
	c.check = func(args []string) error {
		if _, err := analyze.ParseAlgorithm(*algo); err != nil {
			return err
		}
		return needArgs(1, "ticker")(args)
	}
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		var alg analyze.Algorithm
		if *algo != "" {
			alg, _ = analyze.ParseAlgorithm(*algo)
		}
		res := a.Signal(ctx, args[0], alg)
		fmt.Fprintf(out, "%s (%s): %s  RSI %.2f", res.Ticker, res.Algorithm, res.Signal, res.RSI)
		if res.Reason != "" {
			fmt.Fprintf(out, "  [%s]", res.Reason)
		}
		fmt.Fprintln(out)
		return nil
	}
	return c
}

func scanCommand() *command {
	c := newCommand("scan", "TICKER...")
	algo := algoFlag(c)
	c.check = func(args []string) error {
		if _, err := analyze.ParseAlgorithm(*algo); err != nil {
			return err
		}
		return needArgs(1, "tickers")(args)
	}
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		var alg analyze.Algorithm
		if *algo != "" {
			alg, _ = analyze.ParseAlgorithm(*algo)
		}
		scan, err := a.ScanSignals(ctx, tickersFromArgs(args), alg, progressLogger("signals"))
		if err != nil {
			return err
		}
		for _, r := range scan.Results {
			fmt.Fprintf(out, "%-10s %-5s RSI %6.2f %s\n", r.Ticker, r.Signal, r.RSI, r.Reason)
		}
		fmt.Fprintln(out, scan.Summary())
		return nil
	}
	return c
}

func predictCommand(name string, optimized bool) *command {
	c := newCommand(name, "TICKER")
	horizon := c.fs.Int("horizon", 30, "forecast horizon in days (7, 30 or 90)")
	asJSON := c.fs.Bool("json", false, "print the full result as JSON")
	c.check = func(args []string) error {
		if !discovery.ValidHorizon(*horizon, discovery.QuantHorizons) {
			return fmt.Errorf("%w: %d", discovery.ErrBadHorizon, *horizon)
		}
		return needArgs(1, "ticker")(args)
	}
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		res, err := a.Predict(ctx, args[0], *horizon, optimized)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(out, res)
		}
		if !res.OK() {
			fmt.Fprintf(out, "%s: %s\n", res.Ticker, res.Status)
			return nil
		}
		fmt.Fprintf(out, "%s in %d days: %.4f -> %.4f (%+.2f%%)\n",
			res.Ticker, res.Horizon, *res.CurrentPrice, *res.PredictedPrice, *res.PercentChange)
		if res.ValidationRMSE != nil {
			fmt.Fprintf(out, "validation RMSE: %.4f\n", *res.ValidationRMSE)
		}
		if att := res.Attribution; att != nil {
			fmt.Fprintf(out, "base value %.4f\n", att.BaseValue)
			for i, f := range att.Features {
				fmt.Fprintf(out, "  %-14s %12.4f  %+10.4f\n", f, att.Values[i], att.Contributions[i])
			}
		}
		return nil
	}
	return c
}

func discoverCommand() *command {
	c := newCommand("discover", "")
	market := c.fs.String("market", "crypto", "market: crypto or sp500")
	horizon := c.fs.Int("horizon", 7, "forecast horizon in days (7 or 30)")
	save := c.fs.Bool("save", false, "append every forecast to the prediction ledger")
	c.check = func([]string) error {
		if _, err := discovery.ParseMarket(*market); err != nil {
			return err
		}
		if !discovery.ValidHorizon(*horizon, discovery.DiscoveryHorizons) {
			return fmt.Errorf("%w: %d", discovery.ErrBadHorizon, *horizon)
		}
		return nil
	}
	c.run = func(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
		m, _ := discovery.ParseMarket(*market)
		d, err := a.Discover(ctx, m, *horizon, *save, progressLogger("discovery"))
		if err != nil {
			return err
		}
		fmt.Fprint(out, d.Summary())
		return nil
	}
	return c
}

func parseDates(startS, endS string, now time.Time) (time.Time, time.Time, error) {
	end := models.Day(now)
	if endS != "" {
		var err error
		if end, err = models.ParseDate(endS); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
		}
	}
	start := end.AddDate(-1, 0, 0)
	if startS != "" {
		var err error
		if start, err = models.ParseDate(startS); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return start, end, nil
}

func dateFlags(c *command) (start, end *string) {
	start = c.fs.String("start", "", "first day, YYYY-MM-DD (default one year before end)")
	end = c.fs.String("end", "", "last day, YYYY-MM-DD (default today)")
	return start, end
}

func backtestCommand() *command {
	c := newCommand("backtest", "TICKER")
	start, end := dateFlags(c)
	c.check = func(args []string) error {
		if _, _, err := parseDates(*start, *end, time.Now().UTC()); err != nil {
			return err
		}
		return needArgs(1, "ticker")(args)
	}
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		from, to, _ := parseDates(*start, *end, time.Now().UTC())
		res, err := a.Backtest(ctx, models.NormalizeTicker(args[0]), from, to)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, backtest.FormatResults(res))
		return nil
	}
	return c
}

func historyCommand() *command {
	c := newCommand("history", "TICKER")
	start, end := dateFlags(c)
	years := c.fs.Int("forecast", 0, fmt.Sprintf("extend a long-range trend this many years (1 to %d, 0 for none)", trend.MaxYears))
	rows := c.fs.Int("rows", 5, "number of trailing rows to print")
	asJSON := c.fs.Bool("json", false, "print every bar and forecast point as JSON")
	c.check = func(args []string) error {
		if *years < 0 || *years > trend.MaxYears {
			return fmt.Errorf("%w, got %d", trend.ErrBadYears, *years)
		}
		if _, _, err := parseDates(*start, *end, time.Now().UTC()); err != nil {
			return err
		}
		return needArgs(1, "ticker")(args)
	}
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		from, to, _ := parseDates(*start, *end, time.Now().UTC())
		h, err := a.PriceHistory(ctx, args[0], from, to, *years)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(out, h)
		}

		fmt.Fprintf(out, "%s: %d bars %s..%s\n", h.Ticker, len(h.Candles),
			h.Candles[0].Timestamp.Format(models.DateLayout), h.Candles[len(h.Candles)-1].Timestamp.Format(models.DateLayout))
		for _, b := range tail(h.Candles, *rows) {
			fmt.Fprintf(out, "%s  open %10.4f  high %10.4f  low %10.4f  close %10.4f  volume %d\n",
				b.Timestamp.Format(models.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume)
		}

		f := h.Forecast
		if f == nil {
			return nil
		}
		fmt.Fprintf(out, "trend over %d year(s): %+.2f%% a year, residual std %.4f\n",
			f.Years, f.Components.AnnualGrowthPct, f.ResidualStd)
		for _, p := range tail(f.Points, *rows) {
			fmt.Fprintf(out, "%s  yhat %10.4f  [%10.4f, %10.4f]\n",
				p.Date.Format(models.DateLayout), p.Yhat, p.Lower, p.Upper)
		}
		return nil
	}
	return c
}

func tail[T any](s []T, n int) []T {
	if n < 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

func kindFlag(c *command) *string {
	return c.fs.String("kind", string(models.PortfolioReal), "portfolio: real or fictitious")
}

func checkKind(kind string) error {
	if !models.PortfolioKind(kind).Valid() {
		return fmt.Errorf("%w: unknown portfolio %q", portfolio.ErrInvalidTrade, kind)
	}
	return nil
}

func tradeCommand() *command {
	c := newCommand("trade", "TICKER AMOUNT")
	kind := kindFlag(c)
	currency := c.fs.String("currency", portfolio.CurrencyUSD, "currency of AMOUNT: USD or EUR")
	c.check = func(args []string) error {
		if err := checkKind(*kind); err != nil {
			return err
		}
		return needArgs(2, "ticker and amount")(args)
	}
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		var amount float64
		if _, err := fmt.Sscanf(args[1], "%g", &amount); err != nil {
			return fmt.Errorf("%w: amount %q", portfolio.ErrInvalidTrade, args[1])
		}
		trade, err := a.AddTrade(ctx, portfolio.AddTradeRequest{
			Ticker:   args[0],
			Amount:   amount,
			Currency: *currency,
			Kind:     models.PortfolioKind(*kind),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "booked %s: %.6f %s @ %.4f = %.2f USD (%s)\n",
			trade.ID, trade.Quantity, trade.Ticker, trade.Price, trade.Value, trade.Kind)
		return nil
	}
	return c
}

func positionsCommand() *command {
	c := newCommand("positions", "")
	kind := kindFlag(c)
	c.check = func([]string) error { return checkKind(*kind) }
	c.run = func(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
		positions, summary, err := a.Positions(ctx, models.PortfolioKind(*kind))
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			fmt.Fprintf(out, "no positions in the %s portfolio\n", *kind)
			return nil
		}
		for _, p := range positions {
			fmt.Fprintf(out, "%-10s qty %12.6f  avg %10.4f  now %10.4f  value %12.2f  gain %+10.2f (%+.2f%%) %s\n",
				p.Ticker, p.Quantity, p.AvgPrice, p.CurrentPrice, p.CurrentValue, p.Gain, p.GainPct, p.Signal)
		}
		fmt.Fprintf(out, "total invested %.2f  value %.2f  gain %+.2f (%+.2f%%)\n",
			summary.Invested, summary.Value, summary.Gain, summary.GainPct)
		return nil
	}
	return c
}

func valuateCommand() *command {
	c := newCommand("valuate", "FILE (use - for stdin)")
	c.check = needArgs(1, "holdings file")
	c.run = func(ctx context.Context, a *app.App, args []string, out io.Writer) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read holdings: %w", err)
		}

		v := a.Valuate(ctx, string(data))
		for _, h := range v.Holdings {
			fmt.Fprintf(out, "%-10s %12.6f x %10.4f = %12.2f  %5.1f%%\n",
				h.Ticker, h.Quantity, h.Price, h.Value, h.Allocation*100)
		}
		fmt.Fprintf(out, "total %.2f\n", v.Total)
		for _, w := range v.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		return nil
	}
	return c
}

func predictionsCommand() *command {
	c := newCommand("predictions", "")
	status := c.fs.String("status", "", "filter: pending, completed or price_error")
	c.run = func(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
		records, stats, err := a.Predictions(ctx)
		if err != nil {
			return err
		}
		for _, r := range records {
			if *status != "" && string(r.Status) != *status {
				continue
			}
			fmt.Fprintf(out, "%s %-10s %3dd pred %10.4f (%+.2f%%) due %s  %s",
				r.PredictionDate.Format(models.DateLayout), r.Ticker, r.HorizonDays,
				r.PredictedPrice, r.PredictedChangePct, r.DueDate().Format(models.DateLayout), r.Status)
			if r.RealizedPrice != nil && r.RealizedChangePct != nil {
				fmt.Fprintf(out, "  realized %.4f (%+.2f%%)", *r.RealizedPrice, *r.RealizedChangePct)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "completed %d  directional accuracy %.1f%%  MAE %.4f\n",
			stats.Count, stats.DirectionalAccuracy*100, stats.MAE)
		return nil
	}
	return c
}

func reconcileCommand() *command {
	c := newCommand("reconcile", "")
	c.run = func(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
		report, err := a.Reconcile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, scheduler.FormatReport(report))
		return nil
	}
	return c
}

func macroCommand() *command {
	c := newCommand("macro", "")
	start, end := dateFlags(c)
	c.check = func([]string) error {
		_, _, err := parseDates(*start, *end, time.Now().UTC())
		return err
	}
	c.run = func(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
		from, to, _ := parseDates(*start, *end, time.Now().UTC())
		rows, err := a.MacroRows(ctx, from, to)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "date        fed_funds    cpi      unemp    vix")
		for _, r := range rows {
			fmt.Fprintf(out, "%s  %8.2f  %8.2f  %6.2f  %6.2f\n",
				r.Date.Format(models.DateLayout), r.FedFundsRate, r.InflationCPI, r.UnemploymentRate, r.VIX)
		}
		return nil
	}
	return c
}

func serveCommand() *command {
	c := newCommand("serve", "")
	addr := c.fs.String("addr", "", "listen address (default from config)")
	c.run = func(ctx context.Context, a *app.App, _ []string, _ io.Writer) error {
		listen := a.Config.HTTPAddr
		if *addr != "" {
			listen = *addr
		}

		sched := scheduler.New(ctx, a, a.Notifier)
		if a.Config.ReconcileCron != "" {
			if err := sched.Register(a.Config.ReconcileCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		srv := server.New(a, server.Options{Addr: listen, CORSOrigins: a.Config.CORSOrigins})
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	return c
}
