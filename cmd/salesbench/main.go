package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/salesbench/config"
	"github.com/alejandrodnm/salesbench/internal/adapters/dataset"
	"github.com/alejandrodnm/salesbench/internal/adapters/forecast"
	"github.com/alejandrodnm/salesbench/internal/adapters/notify"
	"github.com/alejandrodnm/salesbench/internal/adapters/storage"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty: defaults)")
	submit := flag.Bool("submit", false, "train on full history and write submission files")
	model := flag.String("model", "", "forecaster: loglinear|snaive (overrides config)")
	level := flag.String("level", "total", "backtest level: total|bottom")
	numWindows := flag.Int("num-windows", 0, "number of backtest windows (overrides config)")
	testWindow := flag.Int("test-window", 0, "test window length (overrides config)")
	stride := flag.Int("stride", 0, "stride between windows (overrides config)")
	numSteps := flag.Int("num-steps", 0, "gradient steps for loglinear fit (overrides config)")
	lr := flag.Float64("lr", 0, "learning rate for loglinear fit (overrides config)")
	seed := flag.Uint64("seed", 0, "random seed (overrides config)")
	workers := flag.Int("workers", 0, "parallel windows (overrides config)")
	output := flag.String("o", "salesbench.csv", "submission output file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	// solo los flags pasados explícitamente sobreescriben la config:
	// -seed 0 es una semilla válida, no un "sin especificar"
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(cfg, set, *model, *numWindows, *testWindow, *stride, *numSteps, *lr, *seed, *workers)
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("salesbench starting",
		"config", *configPath,
		"model", cfg.Forecast.Model,
		"submit", *submit,
		"level", *level,
		"seed", cfg.Backtest.Seed,
	)

	provider, err := dataset.NewSynthetic(dataset.Config{
		Stores:         cfg.Dataset.Stores,
		Items:          cfg.Dataset.Items,
		Duration:       cfg.Dataset.Duration,
		Seed:           cfg.Dataset.Seed,
		MaxLaunchDelay: cfg.Dataset.MaxLaunchDelay,
	})
	if err != nil {
		slog.Error("failed to build dataset provider", "err", err)
		os.Exit(1)
	}

	factory, err := forecasterFactory(cfg.Forecast)
	if err != nil {
		slog.Error("unknown forecaster", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *submit {
		if err := runSubmit(ctx, cfg, provider, factory, *output); err != nil {
			slog.Error("submit failed", "err", err)
			os.Exit(1)
		}
		return
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	if err := runBacktest(ctx, cfg, provider, factory, store, notify.NewConsole(), *level); err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	slog.Info("salesbench finished cleanly")
}

// forecasterFactory traduce la configuración al backend correspondiente.
func forecasterFactory(cfg config.ForecastConfig) (ports.ForecasterFactory, error) {
	switch cfg.Model {
	case "loglinear":
		return forecast.Factory(forecast.Options{
			NumSteps:          cfg.NumSteps,
			LearningRate:      cfg.LearningRate,
			LearningRateDecay: cfg.LearningRateDecay,
			ClipNorm:          cfg.ClipNorm,
		}), nil
	case "snaive":
		return forecast.SeasonalNaiveFactory(cfg.Season), nil
	default:
		return nil, &unknownModelError{name: cfg.Model}
	}
}

type unknownModelError struct{ name string }

func (e *unknownModelError) Error() string {
	return "unknown forecaster model " + e.name + " (want loglinear or snaive)"
}

// applyFlags sobreescribe la configuración con los flags pasados en la
// línea de comandos. `set` contiene los nombres de flag que el usuario
// escribió explícitamente (flag.Visit), así que un valor cero explícito
// también sobreescribe.
func applyFlags(cfg *config.Config, set map[string]bool, model string, numWindows, testWindow, stride, numSteps int, lr float64, seed uint64, workers int) {
	if set["model"] {
		cfg.Forecast.Model = model
	}
	if set["num-windows"] {
		cfg.Backtest.NumWindows = numWindows
	}
	if set["test-window"] {
		cfg.Backtest.TestWindow = testWindow
	}
	if set["stride"] {
		cfg.Backtest.Stride = stride
	}
	if set["num-steps"] {
		cfg.Forecast.NumSteps = numSteps
	}
	if set["lr"] {
		cfg.Forecast.LearningRate = lr
	}
	if set["seed"] {
		cfg.Backtest.Seed = seed
	}
	if set["workers"] {
		cfg.Backtest.Workers = workers
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
