package domain

// weighted.go — combinación de métrica cruda, escala naive y pesos de
// importancia en un único escalar por ventana (el "weighted scaled error"
// de la evaluación: WRMSSE, WSPL, etc.).

import "fmt"

// NormalizeWeights normaliza un vector de pesos [...batch, duration] por
// paso temporal: los pesos de todas las series en un mismo t pasan a sumar 1.
// Un paso cuya suma es cero (p. ej. pesos de ventas en dinero antes de
// cualquier lanzamiento) se deja en ceros en vez de dividir por cero: ese
// paso no porta información de importancia y no debe contaminar con NaN a
// quien lo lea. El tensor original no se modifica.
func NormalizeWeights(w *Tensor) *Tensor {
	batch := prod(w.Shape[:len(w.Shape)-1])
	dur := w.Shape[len(w.Shape)-1]

	out := w.Clone()
	for t := 0; t < dur; t++ {
		var sum float64
		for b := 0; b < batch; b++ {
			sum += w.Data[b*dur+t]
		}
		if sum == 0 {
			continue
		}
		for b := 0; b < batch; b++ {
			out.Data[b*dur+t] /= sum
		}
	}
	return out
}

// WeightsAt devuelve el peso de cada serie en el paso temporal t.
func WeightsAt(w *Tensor, t int) ([]float64, error) {
	batch := prod(w.Shape[:len(w.Shape)-1])
	dur := w.Shape[len(w.Shape)-1]
	if t < 0 || t >= dur {
		return nil, fmt.Errorf("domain.WeightsAt: step %d out of range [0, %d)", t, dur)
	}
	out := make([]float64, batch)
	for b := 0; b < batch; b++ {
		out[b] = w.Data[b*dur+t]
	}
	return out, nil
}

// WeightedScaled divide el valor crudo de la métrica por la escala naive de
// cada serie, lo multiplica por su peso y suma sobre todas las series.
// value tiene shape [...batch]; train es la porción de entrenamiento
// [...batch, duration, channels] usada para estimar la escala.
func WeightedScaled(metric string, value, train *Tensor, weight []float64) (float64, error) {
	if !shapeEq(value.Shape, train.BatchShape()) {
		return 0, fmt.Errorf("domain.WeightedScaled: value shape %v does not match train batch shape %v", value.Shape, train.BatchShape())
	}
	if len(weight) != value.Size() {
		return 0, fmt.Errorf("domain.WeightedScaled: weight length %d does not match %d series", len(weight), value.Size())
	}

	scale, err := MetricScale(metric, train)
	if err != nil {
		return 0, fmt.Errorf("domain.WeightedScaled: %w", err)
	}

	var total float64
	for b, v := range value.Data {
		total += weight[b] * v / scale.Data[b]
	}
	return total, nil
}
