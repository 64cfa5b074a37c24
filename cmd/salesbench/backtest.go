package main

// backtest.go — modo backtest: ventanas deslizantes sobre el panel.
//
// Nivel "total": el modelo se entrena sobre el agregado de todo el panel en
// espacio log1p y el transform devuelve predicción y verdad a escala de
// ventas antes de puntuar. Nivel "bottom": todas las series bottom con pesos
// de ventas en dinero, sin transform.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/salesbench/config"
	"github.com/alejandrodnm/salesbench/internal/application/backtest"
	"github.com/alejandrodnm/salesbench/internal/domain"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

func runBacktest(
	ctx context.Context,
	cfg *config.Config,
	provider ports.DatasetProvider,
	factory ports.ForecasterFactory,
	store ports.ResultStore,
	notifier ports.Notifier,
	level string,
) error {
	panel, err := provider.Panel(ctx)
	if err != nil {
		return fmt.Errorf("load panel: %w", err)
	}
	covariates, err := provider.Covariates(0)
	if err != nil {
		return fmt.Errorf("load covariates: %w", err)
	}

	var data, weight *domain.Tensor
	var transform backtest.Transform
	switch level {
	case "total":
		total, err := panel.AggregatedSales(panel.Hierarchy.Levels[0])
		if err != nil {
			return fmt.Errorf("aggregate sales: %w", err)
		}
		data = logTensor(total)
		transform = expTransform
	case "bottom":
		data = panel.Sales
		weight, err = panel.DollarWeights(cfg.Backtest.WeightWindow)
		if err != nil {
			return fmt.Errorf("dollar weights: %w", err)
		}
	default:
		return fmt.Errorf("unknown backtest level %q (want total or bottom)", level)
	}

	b := backtest.New(backtest.Config{
		NumWindows: cfg.Backtest.NumWindows,
		TestWindow: cfg.Backtest.TestWindow,
		Stride:     cfg.Backtest.Stride,
		NumSamples: cfg.Backtest.NumSamples,
		Workers:    cfg.Backtest.Workers,
		Seed:       cfg.Backtest.Seed,
		Transform:  transform,
	}, factory)

	windows, err := b.Run(ctx, data, covariates, weight)
	if err != nil {
		return err
	}

	run := &domain.BacktestRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Model:     cfg.Forecast.Model,
		Seed:      cfg.Backtest.Seed,
		Windows:   windows,
	}

	if err := store.SaveBacktest(ctx, run); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	slog.Info("backtest persisted", "run_id", run.ID, "windows", len(windows))

	return notifier.NotifyBacktest(ctx, run)
}

// logTensor pasa la serie a espacio log1p para entrenar.
func logTensor(t *domain.Tensor) *domain.Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		out.Data[i] = math.Log1p(v)
	}
	return out
}

// expTransform devuelve predicción y verdad a escala de ventas.
func expTransform(pred, truth *domain.Tensor) (*domain.Tensor, *domain.Tensor) {
	return expm1Tensor(pred), expm1Tensor(truth)
}

func expm1Tensor(t *domain.Tensor) *domain.Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		out.Data[i] = math.Expm1(v)
	}
	return out
}
