package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/falcoza/marketreporternew/internal/alphavantage"
	"github.com/falcoza/marketreporternew/internal/coingecko"
	"github.com/falcoza/marketreporternew/internal/config"
	"github.com/falcoza/marketreporternew/internal/frankfurter"
	"github.com/falcoza/marketreporternew/internal/mail"
	"github.com/falcoza/marketreporternew/internal/render"
	"github.com/falcoza/marketreporternew/internal/report"
	"github.com/falcoza/marketreporternew/internal/resolve"
	"github.com/falcoza/marketreporternew/internal/retry"
	"github.com/falcoza/marketreporternew/internal/store"
	"github.com/falcoza/marketreporternew/internal/yahoo"
)

func main() {
	var (
		schedule = pflag.String("schedule", "", "cron expression; run repeatedly on a schedule instead of once")
		dryRun   = pflag.Bool("dry-run", false, "generate the report but skip sending the email")
		verbose  = pflag.Bool("verbose", false, "enable debug logging")
	)
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	theme, err := parseTheme(cfg.Theme)
	if err != nil {
		log.Error("failed to parse report theme", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received interrupt signal, shutting down")
		cancel()
	}()

	policy := retry.Policy{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.Retry.InitialDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
	}

	av := alphavantage.NewClient(cfg.AlphavantageAPIKey, cfg.AlphavantageBaseURL, loc, policy)
	aggregator := &report.Aggregator{
		Basket: cfg.Instruments,
		Resolver: resolve.NewResolver(log,
			yahoo.NewClient(cfg.YahooBaseURL, loc, policy),
			av,
			frankfurter.NewClient(cfg.FrankfurterBaseURL, policy),
			coingecko.NewClient(cfg.CoinGeckoBaseURL, cfg.CryptoVsCurrency, loc, policy),
		),
		Anchors:  resolve.NewAnchorResolver(loc, nil, log),
		Guard:    resolve.NewGuard(cfg.Outlier.Threshold, av, log),
		Store:    store.NewFileStore(cfg.CachePath),
		Location: loc,
		Log:      log,
	}

	renderer := render.New(theme)
	sender := &mail.Sender{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		From:       cfg.SMTP.Sender,
		Password:   cfg.SMTP.Password,
		Recipients: cfg.SMTP.Recipients,
	}

	run := func(ctx context.Context) error {
		// Each run gets its own timeout; a hung upstream must not stall
		// the next scheduled invocation.
		runCtx, done := context.WithTimeout(ctx, 5*time.Minute)
		defer done()

		snap, err := aggregator.Run(runCtx)
		if err != nil {
			return err
		}
		log.Info("snapshot assembled", "status", snap.Status, "rows", len(snap.Rows))

		if err := renderer.RenderFile(snap, cfg.OutputPath); err != nil {
			return err
		}
		log.Info("report rendered", "path", cfg.OutputPath)

		if *dryRun {
			log.Info("dry run, skipping email")
			return nil
		}
		if err := sender.SendReport(cfg.OutputPath); err != nil {
			return err
		}
		log.Info("report sent", "recipients", len(cfg.SMTP.Recipients))
		return nil
	}

	if *schedule == "" {
		if err := run(ctx); err != nil {
			log.Error("report run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() {
		if err := run(ctx); err != nil {
			log.Error("scheduled report run failed", "error", err)
		}
	}); err != nil {
		log.Error("invalid schedule expression", "schedule", *schedule, "error", err)
		os.Exit(1)
	}

	log.Info("running on schedule", "schedule", *schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

func parseTheme(t config.ThemeConfig) (render.Theme, error) {
	var theme render.Theme
	var err error
	if theme.Background, err = render.ParseHexColor(t.Background); err != nil {
		return theme, err
	}
	if theme.Text, err = render.ParseHexColor(t.Text); err != nil {
		return theme, err
	}
	if theme.Header, err = render.ParseHexColor(t.Header); err != nil {
		return theme, err
	}
	if theme.Border, err = render.ParseHexColor(t.Border); err != nil {
		return theme, err
	}
	if theme.Positive, err = render.ParseHexColor(t.Positive); err != nil {
		return theme, err
	}
	if theme.Negative, err = render.ParseHexColor(t.Negative); err != nil {
		return theme, err
	}
	return theme, nil
}
