package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/app"
	"github.com/Alias1177/insighthub/internal/config"
)

const usage = `usage: insighthub <command> [flags]

commands:
  score        rank tickers by fundamentals
  signal       classify one ticker (BUY/SELL/HOLD)
  scan         classify a list of tickers
  predict      baseline price forecast
  deep         optimized price forecast with attribution
  discover     rank the movers of a market
  backtest     SMA crossover backtest
  history      daily bars with an optional long-range trend
  trade        book a buy in a portfolio
  positions    show portfolio positions
  valuate      price a holdings file
  predictions  show the prediction ledger
  reconcile    resolve matured predictions
  macro        show macro indicators
  serve        run the HTTP API and the reconcile schedule

run "insighthub <command> -h" for the flags of a command
`

var errUsage = errors.New("usage")

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// run dispatches a subcommand. The application is only built once the
// command and its flags are known to be valid.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	newCmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	cmd := newCmd()
	if err := cmd.fs.Parse(args[1:]); err != nil {
		return err
	}
	if cmd.check != nil {
		if err := cmd.check(cmd.fs.Args()); err != nil {
			return err
		}
	}

	cfg, err := config.Load(cmd.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.LogLevel)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, cmd.fs.Args(), out)
}

// setupSignalHandling cancels ctx on SIGINT or SIGTERM
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, stopping...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}
