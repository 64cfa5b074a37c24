package ports

import (
	"context"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// Notifier reporta los resultados de una ejecución de backtest.
type Notifier interface {
	NotifyBacktest(ctx context.Context, run *domain.BacktestRun) error
}
