package main

// submit.go — modo submission: entrena sobre el historial completo,
// desagrega el forecast agregado hasta el nivel bottom y escribe las tablas
// de accuracy y uncertainty.

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/alejandrodnm/salesbench/config"
	"github.com/alejandrodnm/salesbench/internal/adapters/submit"
	"github.com/alejandrodnm/salesbench/internal/application/topdown"
	"github.com/alejandrodnm/salesbench/internal/domain"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

func runSubmit(
	ctx context.Context,
	cfg *config.Config,
	provider ports.DatasetProvider,
	factory ports.ForecasterFactory,
	output string,
) error {
	horizon := cfg.Backtest.TestWindow

	panel, err := provider.Panel(ctx)
	if err != nil {
		return fmt.Errorf("load panel: %w", err)
	}
	covariates, err := provider.Covariates(horizon)
	if err != nil {
		return fmt.Errorf("load covariates: %w", err)
	}

	// forecast del agregado total en espacio log1p
	total, err := panel.AggregatedSales(panel.Hierarchy.Levels[0])
	if err != nil {
		return fmt.Errorf("aggregate sales: %w", err)
	}
	forecaster := factory()
	ensemble, err := forecaster.Forecast(ctx, logTensor(total), covariates, horizon, cfg.Backtest.NumSamples, cfg.Backtest.Seed)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}

	flat, err := topdown.FlattenAggregate(expm1Tensor(ensemble))
	if err != nil {
		return err
	}

	// reparto top-down: proporciones de venta de los últimos 28 pasos
	proportion, err := topdown.Proportion(panel.Sales, topdown.ProportionWindow)
	if err != nil {
		return err
	}
	mean, err := topdown.EnsembleMean(flat)
	if err != nil {
		return err
	}
	point := topdown.DisaggregatePoint(mean, proportion)
	if err := submit.WriteAccuracyFile(output, panel.IDs, point); err != nil {
		return err
	}
	slog.Info("accuracy submission written", "file", output, "series", panel.BottomCount())

	// incertidumbre: re-muestreo Poisson del reparto y re-agregación
	bottom, err := topdown.DisaggregateSamples(flat, proportion, rand.NewSource(cfg.Backtest.Seed))
	if err != nil {
		return err
	}
	agg, err := domain.AggregateSamples(bottom, panel.Hierarchy.Levels...)
	if err != nil {
		return err
	}
	q, err := topdown.QuantileSummary(agg, domain.Quantiles)
	if err != nil {
		return err
	}

	uncertaintyFile := uncertaintyPath(output)
	if err := submit.WriteUncertaintyFile(uncertaintyFile, aggregatedIDs(panel), q, domain.Quantiles); err != nil {
		return err
	}
	slog.Info("uncertainty submission written",
		"file", uncertaintyFile,
		"series", panel.Hierarchy.TotalSeries(),
		"quantiles", len(domain.Quantiles),
	)
	return nil
}

// aggregatedIDs nombra cada serie agregada como "<nivel>_<grupo>", en el
// mismo orden en que AggregateSamples concatena los niveles. El nivel
// identidad (una serie bottom por grupo) usa los ids reales del panel.
func aggregatedIDs(p *domain.Panel) []string {
	ids := make([]string, 0, p.Hierarchy.TotalSeries())
	for _, l := range p.Hierarchy.Levels {
		if isIdentityLevel(l, p.BottomCount()) {
			ids = append(ids, p.IDs...)
			continue
		}
		for g := 0; g < l.Count; g++ {
			ids = append(ids, fmt.Sprintf("%s_%d", l.Name, g))
		}
	}
	return ids
}

// isIdentityLevel detecta la agrupación identidad sobre las series bottom.
func isIdentityLevel(l domain.Level, n int) bool {
	if l.Count != n || len(l.Groups) != n {
		return false
	}
	for i, g := range l.Groups {
		if g != i {
			return false
		}
	}
	return true
}

// uncertaintyPath deriva "<base>_uncertainty<ext>" del fichero de accuracy.
func uncertaintyPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_uncertainty" + ext
}
