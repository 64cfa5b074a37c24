package ports

import (
	"context"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// Forecaster es el colaborador externo que produce un ensemble de samples
// para un intervalo futuro. El core no conoce cómo se entrena ni cómo se
// hace la inferencia: solo consume el ensemble resultante.
type Forecaster interface {
	// Forecast entrena sobre train [...batch, duration, channels] con las
	// covariables [duration+horizon, features] y devuelve un ensemble
	// [num_samples, ...batch, horizon, channels] para los `horizon` pasos
	// siguientes al final de train. La semilla se pasa explícita: nada de
	// estado aleatorio global compartido entre invocaciones.
	Forecast(ctx context.Context, train, covariates *domain.Tensor, horizon, numSamples int, seed uint64) (*domain.Tensor, error)
}

// ForecasterFactory crea una instancia independiente de Forecaster.
// El backtest paralelo usa una por ventana para no compartir estado.
type ForecasterFactory func() Forecaster
