package backtest

// concurrent.go — ejecución paralela de ventanas.
//
// Las ventanas son estadísticamente independientes una vez cortado el
// historial, así que pueden evaluarse en paralelo: cada una recibe su propia
// instancia de Forecaster y escribe su registro en la posición que le
// corresponde. El primer error cancela el resto y aborta el backtest entero,
// sin resultados parciales.

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// runWindows evalúa todas las ventanas, en secuencia o con un pool limitado
// por cfg.Workers, preservando siempre el orden cronológico del resultado.
func (b *Backtester) runWindows(
	ctx context.Context,
	t1s []int,
	data, covariates, normWeight *domain.Tensor,
	metrics map[string]domain.Metric,
) ([]domain.Window, error) {
	windows := make([]domain.Window, len(t1s))

	if b.cfg.Workers <= 1 {
		forecaster := b.newForecaster()
		for i, t1 := range t1s {
			win, err := b.runWindow(ctx, forecaster, data, covariates, normWeight, metrics, i, t1)
			if err != nil {
				return nil, fmt.Errorf("backtest: window %d (t1=%d): %w", i, t1, err)
			}
			windows[i] = win
			slog.Debug("window complete", "window", i, "t1", win.T1, "t2", win.T2)
		}
		return windows, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, t1 := range t1s {
		g.Go(func() error {
			// instancia independiente por ventana: sin estado compartido
			forecaster := b.newForecaster()
			win, err := b.runWindow(gctx, forecaster, data, covariates, normWeight, metrics, i, t1)
			if err != nil {
				return fmt.Errorf("backtest: window %d (t1=%d): %w", i, t1, err)
			}
			windows[i] = win
			slog.Debug("window complete", "window", i, "t1", win.T1, "t2", win.T2)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return windows, nil
}
