package topdown

// topdown.go — desagregación top-down de un forecast agregado.
//
// El forecast del nivel agregado se reparte entre las series bottom-level
// con una proporción fija derivada de las ventas recientes. Escalar además
// la dispersión del ensemble por proporciones minúsculas colapsa la varianza
// (repartir un agregado de alta varianza entre miles de series deja
// fragmentos casi deterministas), así que cada sample escalado se trata como
// la tasa de una Poisson y se extrae una realización por sample/serie/paso.
// Los ensembles resultantes se re-agregan por cada nivel de la jerarquía
// para recuperar cuantiles calibrados en todos los niveles.

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// ProportionWindow es la ventana histórica por defecto para las proporciones.
const ProportionWindow = 28

// Proportion calcula la fracción de ventas de cada serie bottom sobre el
// total del panel durante los últimos `window` pasos. Devuelve un vector que
// suma 1. Si no hay ventas en absoluto, la desagregación no está definida y
// se rechaza en vez de producir proporciones divididas por cero.
func Proportion(bottom *domain.Tensor, window int) ([]float64, error) {
	if len(bottom.Shape) < 2 {
		return nil, fmt.Errorf("topdown.Proportion: want bottom sales [...series, duration, channels], got shape %v", bottom.Shape)
	}
	n := bottom.BatchSize()
	dur := bottom.Duration()
	ch := bottom.Channels()
	if window <= 0 || window > dur {
		window = dur
	}

	out := make([]float64, n)
	var grand float64
	for i := 0; i < n; i++ {
		var sum float64
		for t := dur - window; t < dur; t++ {
			for c := 0; c < ch; c++ {
				sum += bottom.Data[(i*dur+t)*ch+c]
			}
		}
		out[i] = sum
		grand += sum
	}
	if grand == 0 {
		return nil, fmt.Errorf("topdown.Proportion: no sales in the last %d steps, proportions undefined", window)
	}
	for i := range out {
		out[i] /= grand
	}
	return out, nil
}

// DisaggregatePoint reparte un forecast agregado entre las series bottom
// mediante producto externo: out[i, t] = proportion[i] · aggregate[t].
// La masa total se conserva exactamente en cada paso.
func DisaggregatePoint(aggregate, proportion []float64) *domain.Tensor {
	n := len(proportion)
	dur := len(aggregate)
	out := domain.Zeros(n, dur)
	for i, p := range proportion {
		for t, v := range aggregate {
			out.Data[i*dur+t] = p * v
		}
	}
	return out
}

// DisaggregateSamples escala cada sample del ensemble agregado [num_samples,
// duration] por la proporción de cada serie y extrae una realización Poisson
// por sample, serie y paso, tratando el valor escalado como tasa. El
// resultado es un ensemble bottom-level [num_samples, n_series, duration].
func DisaggregateSamples(samples *domain.Tensor, proportion []float64, src rand.Source) (*domain.Tensor, error) {
	if len(samples.Shape) != 2 {
		return nil, fmt.Errorf("topdown.DisaggregateSamples: want aggregate ensemble [num_samples, duration], got shape %v", samples.Shape)
	}
	numSamples, dur := samples.Shape[0], samples.Shape[1]
	n := len(proportion)

	out := domain.Zeros(numSamples, n, dur)
	for s := 0; s < numSamples; s++ {
		for i, p := range proportion {
			for t := 0; t < dur; t++ {
				rate := p * samples.Data[s*dur+t]
				if rate <= 0 {
					continue
				}
				pois := distuv.Poisson{Lambda: rate, Src: src}
				out.Data[(s*n+i)*dur+t] = pois.Rand()
			}
		}
	}
	return out, nil
}

// EnsembleMean reduce el eje de samples de un ensemble agregado
// [num_samples, duration] a su media puntual por paso.
func EnsembleMean(samples *domain.Tensor) ([]float64, error) {
	if len(samples.Shape) != 2 {
		return nil, fmt.Errorf("topdown.EnsembleMean: want ensemble [num_samples, duration], got shape %v", samples.Shape)
	}
	numSamples, dur := samples.Shape[0], samples.Shape[1]
	out := make([]float64, dur)
	for s := 0; s < numSamples; s++ {
		for t := 0; t < dur; t++ {
			out[t] += samples.Data[s*dur+t]
		}
	}
	for t := range out {
		out[t] /= float64(numSamples)
	}
	return out, nil
}

// FlattenAggregate convierte un ensemble de forecaster [num_samples, 1,
// horizon, 1] (una sola serie agregada, univariante) en [num_samples,
// horizon].
func FlattenAggregate(ensemble *domain.Tensor) (*domain.Tensor, error) {
	if len(ensemble.Shape) != 4 || ensemble.Shape[1] != 1 || ensemble.Shape[3] != 1 {
		return nil, fmt.Errorf("topdown.FlattenAggregate: want ensemble [num_samples, 1, horizon, 1], got shape %v", ensemble.Shape)
	}
	data := make([]float64, len(ensemble.Data))
	copy(data, ensemble.Data)
	return domain.NewTensor([]int{ensemble.Shape[0], ensemble.Shape[2]}, data)
}

// QuantileSummary extrae los cuantiles empíricos de un ensemble re-agregado
// [num_samples, n_series, duration], devolviendo [len(quantiles), n_series,
// duration].
func QuantileSummary(samples *domain.Tensor, quantiles []float64) (*domain.Tensor, error) {
	if len(samples.Shape) != 3 {
		return nil, fmt.Errorf("topdown.QuantileSummary: want ensemble [num_samples, n_series, duration], got shape %v", samples.Shape)
	}
	numSamples, n, dur := samples.Shape[0], samples.Shape[1], samples.Shape[2]

	out := domain.Zeros(len(quantiles), n, dur)
	buf := make([]float64, numSamples)
	for i := 0; i < n; i++ {
		for t := 0; t < dur; t++ {
			for s := 0; s < numSamples; s++ {
				buf[s] = samples.Data[(s*n+i)*dur+t]
			}
			sort.Float64s(buf)
			for q, level := range quantiles {
				out.Data[(q*n+i)*dur+t] = stat.Quantile(level, stat.LinInterp, buf, nil)
			}
		}
	}
	return out, nil
}
