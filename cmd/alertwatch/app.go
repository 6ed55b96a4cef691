package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"AlertWatch/internal/collector"
	"AlertWatch/internal/config"
	"AlertWatch/internal/cooldown"
	"AlertWatch/internal/metrics"
	"AlertWatch/internal/notifier"
	"AlertWatch/internal/recorder"
	"AlertWatch/internal/scanner"
	"AlertWatch/internal/strategy"
)

// app holds the wired components for one process.
type app struct {
	cfg       *config.Config
	scanner   *scanner.Orchestrator
	metrics   *metrics.Metrics
	telegram  *notifier.TelegramNotifier
	formatter notifier.Formatter
	closers   []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:       cfg,
		formatter: notifier.Formatter{Title: cfg.Notify.Title, ValidFor: cfg.Notify.ValidFor},
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)

	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}
	gateway, err := buildGateway(cfg)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"tickers": source.Name(), "data": gateway.Name()}).Info("data sources ready")

	evaluator, err := strategy.NewEvaluator(cfg.Strategy.ToStrategy())
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}

	notify, err := a.buildNotifier()
	if err != nil {
		return nil, err
	}
	store, err := a.buildCooldown()
	if err != nil {
		return nil, err
	}
	rec := a.buildRecorder()

	opts, err := cfg.ScannerOptions()
	if err != nil {
		return nil, err
	}
	a.scanner, err = scanner.New(opts, scanner.Deps{
		Source:    source,
		Gateway:   gateway,
		Evaluator: evaluator,
		Notifier:  notify,
		Recorder:  rec,
		Cooldown:  store,
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"preset":   cfg.Preset,
		"window":   opts.Window.String(),
		"notifier": notify.Name(),
		"cooldown": store.Name(),
	}).Info("scanner configured")

	ok = true
	return a, nil
}

func buildSource(cfg *config.Config) (collector.TickerSource, error) {
	switch cfg.Tickers.Source {
	case "sheet":
		return collector.NewSheetSource(cfg.Tickers.SheetURL, cfg.Proxy, cfg.DataSource.Timeout), nil
	case "static":
		return collector.NewStaticSource(cfg.Tickers.Watchlist), nil
	}
	return nil, fmt.Errorf("unknown ticker source %q", cfg.Tickers.Source)
}

func buildGateway(cfg *config.Config) (collector.Gateway, error) {
	switch cfg.DataSource.Provider {
	case "twelvedata":
		return collector.NewTwelveDataGateway(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout), nil
	case "polygon":
		return collector.NewPolygonGateway(cfg.DataSource.PolygonAPIKey, cfg.Proxy, cfg.DataSource.Timeout), nil
	case "mock":
		return collector.NewMockGateway(cfg.DataSource.MockPrice), nil
	}
	return nil, fmt.Errorf("unknown data provider %q", cfg.DataSource.Provider)
}

func (a *app) buildNotifier() (notifier.Notifier, error) {
	cfg := a.cfg
	var out notifier.Multi
	for _, ch := range cfg.Notify.Channels {
		switch ch {
		case "discord":
			out = append(out, notifier.NewDiscordNotifier(cfg.Notify.Discord.WebhookURL, a.formatter, cfg.Notify.Timeout))
		case "telegram":
			a.telegram = notifier.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, cfg.Proxy, a.formatter, cfg.Notify.Timeout)
			out = append(out, a.telegram)
		case "log":
			out = append(out, notifier.NewLogNotifier(a.formatter))
		default:
			return nil, fmt.Errorf("unknown notify channel %q", ch)
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func (a *app) buildCooldown() (cooldown.Store, error) {
	cfg := a.cfg.Cooldown
	switch cfg.Backend {
	case "none":
		return cooldown.Noop{}, nil
	case "memory":
		return cooldown.NewMemory(cfg.TTL), nil
	case "redis":
		r, err := cooldown.NewRedis(cooldown.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("cooldown: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	}
	return nil, fmt.Errorf("unknown cooldown backend %q", cfg.Backend)
}

// buildRecorder never fails: a broken history backend degrades to fewer recorders.
func (a *app) buildRecorder() recorder.Recorder {
	db := a.cfg.Database
	var recs recorder.Multi
	if db.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(db.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, skipping")
		} else {
			recs = append(recs, sr)
		}
	}
	if db.JournalDir != "" {
		j, err := recorder.NewCSVJournal(db.JournalDir)
		if err != nil {
			log.WithError(err).Warn("init csv journal failed, skipping")
		} else {
			recs = append(recs, j)
		}
	}
	if len(recs) == 0 {
		return recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, recs.Close)
	return recs
}
