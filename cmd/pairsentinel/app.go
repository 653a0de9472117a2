package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/collector"
	"PairSentinel/internal/config"
	"PairSentinel/internal/logging"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/notifier"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/screener"
)

// app bundles the components every command shares.
type app struct {
	cfg       *config.Config
	metrics   *metrics.Registry
	recorder  recorder.Recorder
	runner    *screener.Runner
	source    catalog.Source
	collector *collector.Collector
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if v := os.Getenv("CONFIG_PATH"); v != "" && !rootCmd.PersistentFlags().Changed("config") {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogJSON); err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

// newApp loads config and builds the shared components. dryRun skips persistence.
func newApp(dryRun bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	var rec recorder.Recorder
	if dryRun {
		rec = recorder.NewNoopRecorder()
	} else {
		rec = newRecorder(cfg)
	}

	return &app{
		cfg:       cfg,
		metrics:   m,
		recorder:  rec,
		runner:    screener.NewRunner(rec, m, cfg.Screening.Workers),
		source:    catalog.FileSource{Path: cfg.DataSource.PricesPath},
		collector: collector.NewCollector(newFetcher(cfg), cfg.DataSource.Symbols, cfg.DataSource.PricesPath, cfg.DataSource.RequestsPerSecond, m),
	}, nil
}

func newRecorder(cfg *config.Config) recorder.Recorder {
	csvRec := recorder.NewCSVRecorder(cfg.Screening.ResultsPath)
	if cfg.Screening.SQLitePath == "" {
		return csvRec
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Screening.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, keeping csv only")
		return csvRec
	}
	return recorder.Chain(csvRec, sr)
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	ds := cfg.DataSource
	var f collector.Fetcher
	switch ds.Provider {
	case "yahoo":
		f = collector.NewYahooFetcher(ds.Endpoint, cfg.Proxy, ds.Timeout, ds.SymbolMap)
	default:
		f = collector.NewTradingViewFetcher(collector.TradingViewConfig{
			Endpoint:       ds.Endpoint,
			Exchange:       ds.Exchange,
			ContractSuffix: ds.ContractSuffix,
			Currency:       ds.Currency,
			Resolution:     ds.Resolution,
			Bars:           ds.Bars,
			Timeout:        ds.Timeout,
			Proxy:          cfg.Proxy,
		})
	}
	log.Info().Str("provider", f.Name()).Msg("data source selected")
	return f
}

// newNotifier returns the configured channels, or nil when none is set up.
func newNotifier(cfg *config.Config, m *metrics.Registry) (notifier.Notifier, *notifier.TelegramNotifier) {
	multi := &notifier.Multi{Metrics: m}
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		multi.Notifiers = append(multi.Notifiers, tn)
	}
	if cfg.EmailEnabled() {
		e := cfg.Email
		multi.Notifiers = append(multi.Notifiers, notifier.NewEmailNotifier(e.Host, e.Port, e.Username, e.Password, e.From, e.To))
	}
	if len(multi.Notifiers) == 0 {
		log.Info().Msg("no notification channel configured")
		return nil, nil
	}
	return multi, tn
}

func (a *app) close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorder")
	}
}
