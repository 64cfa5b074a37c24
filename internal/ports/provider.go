package ports

import (
	"context"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// DatasetProvider entrega el panel jerárquico de ventas y las covariables
// de calendario. El formato de origen de los datos queda fuera del core.
type DatasetProvider interface {
	// Panel devuelve las series bottom-level con su jerarquía de agregación.
	Panel(ctx context.Context) (*domain.Panel, error)

	// Covariates devuelve el tensor de covariables [duration+horizon,
	// features] cubriendo el historial completo más `horizon` pasos futuros.
	Covariates(horizon int) (*domain.Tensor, error)
}
