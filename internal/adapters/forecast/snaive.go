package forecast

// snaive.go — forecaster naive estacional con bootstrap de residuos.
//
// El punto de partida obligado de cualquier benchmark: repetir el último
// ciclo estacional observado. La incertidumbre sale de un bootstrap de los
// residuos one-step del propio naive sobre el historial, así que el ensemble
// refleja la variabilidad real de la serie sin asumir ninguna distribución.

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/alejandrodnm/salesbench/internal/domain"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

// DefaultSeason es el periodo estacional por defecto (semanal, datos diarios).
const DefaultSeason = 7

// SeasonalNaive implementa ports.Forecaster repitiendo el último ciclo de
// longitud Season y perturbándolo con residuos re-muestreados.
type SeasonalNaive struct {
	season int
}

// NewSeasonalNaive crea el forecaster; season <= 0 usa DefaultSeason.
func NewSeasonalNaive(season int) *SeasonalNaive {
	if season <= 0 {
		season = DefaultSeason
	}
	return &SeasonalNaive{season: season}
}

// SeasonalNaiveFactory devuelve una factory para el backtester.
func SeasonalNaiveFactory(season int) ports.ForecasterFactory {
	return func() ports.Forecaster { return NewSeasonalNaive(season) }
}

// Forecast ignora las covariables: el naive estacional solo mira la serie.
func (f *SeasonalNaive) Forecast(ctx context.Context, train, _ *domain.Tensor, horizon, numSamples int, seed uint64) (*domain.Tensor, error) {
	dur := train.Duration()
	batch := train.BatchSize()
	ch := train.Channels()
	if dur < f.season {
		return nil, fmt.Errorf("forecast.SeasonalNaive: history of %d steps is shorter than season %d", dur, f.season)
	}

	rng := rand.New(rand.NewSource(seed))
	shape := append([]int{numSamples}, train.BatchShape()...)
	shape = append(shape, horizon, ch)
	out := domain.Zeros(shape...)

	for b := 0; b < batch; b++ {
		for c := 0; c < ch; c++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			at := func(t int) float64 { return train.Data[(b*dur+t)*ch+c] }

			// residuos one-step del naive sobre el historial disponible
			var residuals []float64
			for t := f.season; t < dur; t++ {
				residuals = append(residuals, at(t)-at(t-f.season))
			}

			for t := 0; t < horizon; t++ {
				point := at(dur - f.season + t%f.season)
				for s := 0; s < numSamples; s++ {
					v := point
					if len(residuals) > 0 {
						v += residuals[rng.Intn(len(residuals))]
					}
					out.Data[((s*batch+b)*horizon+t)*ch+c] = math.Max(v, 0)
				}
			}
		}
	}
	return out, nil
}
