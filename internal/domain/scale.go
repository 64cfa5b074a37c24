package domain

// scale.go — escala naive por serie para normalizar métricas crudas.
//
// La escala es el error medio de un forecast trivial "repetir el último
// valor" sobre la ventana de entrenamiento, descartando el historial de
// ceros iniciales (productos aún no lanzados). Dividir una métrica por esta
// escala la hace comparable entre series de magnitudes muy distintas.

import (
	"fmt"
	"math"
)

// MetricScale calcula la escala naive por serie a partir de los datos de
// entrenamiento [...batch, duration, channels]. El resultado tiene shape
// [...batch]. La familia "rmse" usa escalado cuadrático; el resto, absoluto.
//
// Si una serie tiene menos de 2 pasos activos la escala resultante es
// no-finita (NaN/∞) y se propaga sin enmascarar: el orquestador evita este
// caso subiendo la ventana mínima de entrenamiento.
func MetricScale(metric string, train *Tensor) (*Tensor, error) {
	if len(train.Shape) < 2 {
		return nil, fmt.Errorf("domain.MetricScale: train data needs [duration, channels] axes, got shape %v", train.Shape)
	}

	norm := 1.0
	if metric == "rmse" {
		norm = 2.0
	}

	batch := train.BatchSize()
	dur := train.Duration()
	ch := train.Channels()

	out := Zeros(train.BatchShape()...)
	for b := 0; b < batch; b++ {
		// active_time: número de pasos desde que la suma acumulada de la
		// respuesta deja de ser cero. Recorta el historial previo al launch.
		active := 0
		cum := 0.0
		for t := 0; t < dur; t++ {
			for c := 0; c < ch; c++ {
				cum += train.Data[(b*dur+t)*ch+c]
			}
			if cum != 0 {
				active++
			}
		}
		if active == 0 {
			// serie completamente en cero: no hay escala definible
			out.Data[b] = math.NaN()
			continue
		}

		// diferencias lag-1 con un paso cero implícito antes de la ventana
		var lagNorm float64
		for c := 0; c < ch; c++ {
			var sum float64
			prev := 0.0
			for t := 0; t < dur; t++ {
				v := train.Data[(b*dur+t)*ch+c]
				sum += math.Pow(math.Abs(v-prev), norm)
				prev = v
			}
			// la "diferencia" del primer paso activo es un artefacto del
			// padding en cero, no una diferencia real: se descuenta
			start := train.Data[(b*dur+(dur-active))*ch+c]
			sum -= math.Pow(math.Abs(start), norm)
			lagNorm += sum
		}
		lagNorm /= float64(ch)

		out.Data[b] = math.Pow(lagNorm/float64(active-1), 1/norm)
	}
	return out, nil
}
