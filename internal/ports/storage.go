package ports

import (
	"context"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// ResultStore persiste la secuencia ordenada de ventanas de un backtest.
type ResultStore interface {
	// SaveBacktest persiste una ejecución completa con todas sus ventanas.
	SaveBacktest(ctx context.Context, run *domain.BacktestRun) error

	// LoadBacktest recupera una ejecución por id, con las ventanas en orden.
	LoadBacktest(ctx context.Context, id string) (*domain.BacktestRun, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
