package domain

// metrics.go — métricas de exactitud puntual y probabilística.
//
// Cada métrica reduce el eje de samples y los ejes finales (duration,
// channels), devolviendo un error por elemento batch. Todas son puras y
// deterministas dado un ensemble fijo.

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantiles son los 9 niveles fijos usados por la evaluación de
// incertidumbre: bandas bilaterales del 99%, 95%, 67% y 50% más la mediana.
var Quantiles = []float64{0.005, 0.025, 0.165, 0.25, 0.5, 0.75, 0.835, 0.975, 0.995}

// Metric calcula el error por elemento batch entre un ensemble predictivo
// [num_samples, ...batch, duration, channels] y la verdad
// [...batch, duration, channels]. El resultado tiene shape [...batch].
type Metric func(pred, truth *Tensor) (*Tensor, error)

// DefaultMetrics devuelve las cuatro métricas estándar de la evaluación.
func DefaultMetrics() map[string]Metric {
	return map[string]Metric{
		"mae":  MAE,
		"rmse": RMSE,
		"crps": CRPS,
		"pl":   Pinball,
	}
}

// MAE: desviación absoluta de la mediana del ensemble, promediada sobre
// tiempo y canales.
func MAE(pred, truth *Tensor) (*Tensor, error) {
	if err := validateEnsemble(pred, truth); err != nil {
		return nil, fmt.Errorf("domain.MAE: %w", err)
	}
	return reduceEnsemble(pred, truth, func(samples []float64, y float64) float64 {
		sort.Float64s(samples)
		med := stat.Quantile(0.5, stat.LinInterp, samples, nil)
		return math.Abs(med - y)
	}), nil
}

// RMSE: raíz del error cuadrático medio de la media del ensemble.
// Es el RMS del error de la media, NO la media de RMSEs por sample.
func RMSE(pred, truth *Tensor) (*Tensor, error) {
	if err := validateEnsemble(pred, truth); err != nil {
		return nil, fmt.Errorf("domain.RMSE: %w", err)
	}
	out := reduceEnsemble(pred, truth, func(samples []float64, y float64) float64 {
		var sum float64
		for _, x := range samples {
			sum += x
		}
		e := sum/float64(len(samples)) - y
		return e * e
	})
	for i, v := range out.Data {
		out.Data[i] = math.Sqrt(v)
	}
	return out, nil
}

// CRPS: continuous ranked probability score empírico entre el ensemble
// completo y la verdad, promediado sobre tiempo y canales. Premia a la vez
// calibración y nitidez de la distribución predictiva.
func CRPS(pred, truth *Tensor) (*Tensor, error) {
	if err := validateEnsemble(pred, truth); err != nil {
		return nil, fmt.Errorf("domain.CRPS: %w", err)
	}
	return reduceEnsemble(pred, truth, func(samples []float64, y float64) float64 {
		// CRPS empírico: E|X - y| - ½·E|X - X'|.
		// Con samples ordenados, E|X-X'| = (2/S²)·Σ_i (2i+1-S)·x_(i).
		sort.Float64s(samples)
		s := len(samples)
		var absErr, spread float64
		for i, x := range samples {
			absErr += math.Abs(x - y)
			spread += x * float64(2*i+1-s)
		}
		return absErr/float64(s) - spread/float64(s*s)
	}), nil
}

// Pinball: pérdida de cuantil promediada sobre los 9 niveles fijos de
// Quantiles y sobre tiempo y canales.
func Pinball(pred, truth *Tensor) (*Tensor, error) {
	return PinballLoss(pred, truth, Quantiles)
}

// PinballLoss calcula la pérdida pinball sobre los niveles dados: para cada
// cuantil q se forma el error firmado del cuantil empírico del ensemble y se
// aplica el peso asimétrico -q (error ≤ 0) o 1-q (error > 0).
func PinballLoss(pred, truth *Tensor, quantiles []float64) (*Tensor, error) {
	if err := validateEnsemble(pred, truth); err != nil {
		return nil, fmt.Errorf("domain.PinballLoss: %w", err)
	}
	if len(quantiles) == 0 {
		return nil, fmt.Errorf("domain.PinballLoss: no quantile levels given")
	}
	return reduceEnsemble(pred, truth, func(samples []float64, y float64) float64 {
		sort.Float64s(samples)
		var loss float64
		for _, q := range quantiles {
			e := stat.Quantile(q, stat.LinInterp, samples, nil) - y
			if e <= 0 {
				loss += -q * e
			} else {
				loss += (1 - q) * e
			}
		}
		return loss / float64(len(quantiles))
	}), nil
}

// validateEnsemble verifica que pred sea [S, ...batch, duration, channels]
// y truth [...batch, duration, channels] con ejes coincidentes.
// Nunca se hace broadcasting de shapes incompatibles.
func validateEnsemble(pred, truth *Tensor) error {
	if len(pred.Shape) < 3 {
		return fmt.Errorf("prediction ensemble needs at least [samples, duration, channels], got shape %v", pred.Shape)
	}
	if len(pred.Shape) != len(truth.Shape)+1 {
		return fmt.Errorf("prediction shape %v is not truth shape %v with a leading sample axis", pred.Shape, truth.Shape)
	}
	if !shapeEq(pred.Shape[1:], truth.Shape) {
		return fmt.Errorf("prediction shape %v does not match truth shape %v", pred.Shape, truth.Shape)
	}
	if pred.Shape[0] < 1 {
		return fmt.Errorf("prediction ensemble has no samples (shape %v)", pred.Shape)
	}
	return nil
}

// reduceEnsemble aplica fn a cada celda (batch, t, canal) con el vector de
// samples correspondiente y promedia sobre tiempo y canales. fn puede
// reordenar el buffer de samples; se rellena antes de cada llamada.
func reduceEnsemble(pred, truth *Tensor, fn func(samples []float64, y float64) float64) *Tensor {
	numSamples := pred.Shape[0]
	batch := truth.BatchSize()
	dur := truth.Duration()
	ch := truth.Channels()

	out := Zeros(truth.BatchShape()...)
	samples := make([]float64, numSamples)
	for b := 0; b < batch; b++ {
		var acc float64
		for t := 0; t < dur; t++ {
			for c := 0; c < ch; c++ {
				for s := 0; s < numSamples; s++ {
					samples[s] = pred.Data[((s*batch+b)*dur+t)*ch+c]
				}
				acc += fn(samples, truth.Data[(b*dur+t)*ch+c])
			}
		}
		out.Data[b] = acc / float64(dur*ch)
	}
	return out
}
