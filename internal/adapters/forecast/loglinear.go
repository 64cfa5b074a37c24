package forecast

// loglinear.go — forecaster de regresión log-lineal sobre covariables.
//
// Para cada serie se ajusta una regresión lineal de log1p(ventas) sobre las
// covariables de calendario por descenso de gradiente con decaimiento de la
// tasa de aprendizaje y recorte de norma. La incertidumbre se modela con
// ruido Student-t sobre los residuos del ajuste, de colas más pesadas que la
// normal para no infraestimar picos de demanda. Los samples vuelven a escala
// original con expm1 y se truncan en cero.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alejandrodnm/salesbench/internal/domain"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

// Options controla el ajuste del modelo log-lineal.
type Options struct {
	NumSteps          int     // pasos de descenso de gradiente
	LearningRate      float64 // tasa inicial
	LearningRateDecay float64 // fracción de la tasa inicial al final del ajuste
	ClipNorm          float64 // norma máxima del gradiente
	NoiseDof          float64 // grados de libertad del ruido Student-t
}

// DefaultOptions son los hiperparámetros por defecto del ajuste.
func DefaultOptions() Options {
	return Options{
		NumSteps:          1001,
		LearningRate:      0.1,
		LearningRateDecay: 0.1,
		ClipNorm:          10,
		NoiseDof:          4,
	}
}

// LogLinear implementa ports.Forecaster con una regresión por serie en
// espacio log1p. Sin estado compartido entre llamadas: seguro de usar con
// una instancia por ventana.
type LogLinear struct {
	opts Options

	// acelera el log de progreso del ajuste sin inundar la salida
	progress rate.Sometimes
}

// NewLogLinear crea el forecaster con las opciones dadas; los campos a cero
// toman el valor por defecto.
func NewLogLinear(opts Options) *LogLinear {
	def := DefaultOptions()
	if opts.NumSteps <= 0 {
		opts.NumSteps = def.NumSteps
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.LearningRateDecay <= 0 {
		opts.LearningRateDecay = def.LearningRateDecay
	}
	if opts.ClipNorm <= 0 {
		opts.ClipNorm = def.ClipNorm
	}
	if opts.NoiseDof <= 0 {
		opts.NoiseDof = def.NoiseDof
	}
	return &LogLinear{
		opts:     opts,
		progress: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
}

// Factory devuelve una ports.ForecasterFactory que crea una instancia
// independiente por ventana.
func Factory(opts Options) ports.ForecasterFactory {
	return func() ports.Forecaster { return NewLogLinear(opts) }
}

// Forecast ajusta la regresión sobre [0, T) y devuelve un ensemble
// [num_samples, ...batch, horizon, channels] para [T, T+horizon).
func (f *LogLinear) Forecast(ctx context.Context, train, covariates *domain.Tensor, horizon, numSamples int, seed uint64) (*domain.Tensor, error) {
	dur := train.Duration()
	batch := train.BatchSize()
	ch := train.Channels()

	if covariates == nil || len(covariates.Shape) != 2 {
		return nil, fmt.Errorf("forecast.LogLinear: want covariates [duration, features], got %v", covariates)
	}
	if covariates.Shape[0] < dur+horizon {
		return nil, fmt.Errorf("forecast.LogLinear: covariates cover %d steps, need %d", covariates.Shape[0], dur+horizon)
	}
	features := covariates.Shape[1]

	src := rand.NewSource(seed)
	shape := append([]int{numSamples}, train.BatchShape()...)
	shape = append(shape, horizon, ch)
	out := domain.Zeros(shape...)

	for b := 0; b < batch; b++ {
		for c := 0; c < ch; c++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			// serie en espacio log1p
			y := make([]float64, dur)
			for t := 0; t < dur; t++ {
				y[t] = math.Log1p(train.Data[(b*dur+t)*ch+c])
			}

			weights, sigma := f.fit(y, covariates.Data, features)

			noise := distuv.StudentsT{Mu: 0, Sigma: sigma, Nu: f.opts.NoiseDof, Src: src}
			for t := 0; t < horizon; t++ {
				mu := weights[features] // sesgo
				row := covariates.Data[(dur+t)*features : (dur+t+1)*features]
				for j, x := range row {
					mu += weights[j] * x
				}
				for s := 0; s < numSamples; s++ {
					v := math.Expm1(mu + noise.Rand())
					if v < 0 {
						v = 0
					}
					out.Data[((s*batch+b)*horizon+t)*ch+c] = v
				}
			}
		}
	}
	return out, nil
}

// fit ajusta pesos [features+1] (el último es el sesgo) por descenso de
// gradiente sobre el error cuadrático medio, y devuelve además la desviación
// típica de los residuos finales (con un suelo para series degeneradas).
func (f *LogLinear) fit(y, covData []float64, features int) ([]float64, float64) {
	dur := len(y)
	weights := make([]float64, features+1)
	grad := make([]float64, features+1)

	// decaimiento geométrico: la tasa final es LearningRateDecay veces la inicial
	decay := math.Pow(f.opts.LearningRateDecay, 1/float64(f.opts.NumSteps))
	lr := f.opts.LearningRate

	for step := 0; step < f.opts.NumSteps; step++ {
		for j := range grad {
			grad[j] = 0
		}
		var loss float64
		for t := 0; t < dur; t++ {
			pred := weights[features]
			row := covData[t*features : (t+1)*features]
			for j, x := range row {
				pred += weights[j] * x
			}
			err := pred - y[t]
			loss += err * err
			for j, x := range row {
				grad[j] += 2 * err * x
			}
			grad[features] += 2 * err
		}
		for j := range grad {
			grad[j] /= float64(dur)
		}

		// recorte por norma global
		var norm float64
		for _, g := range grad {
			norm += g * g
		}
		norm = math.Sqrt(norm)
		if norm > f.opts.ClipNorm {
			scale := f.opts.ClipNorm / norm
			for j := range grad {
				grad[j] *= scale
			}
		}

		for j := range grad {
			weights[j] -= lr * grad[j]
		}
		lr *= decay

		if step%100 == 0 {
			f.progress.Do(func() {
				slog.Debug("loglinear fit progress", "step", step, "loss", loss/float64(dur), "lr", lr)
			})
		}
	}

	var sumSq float64
	for t := 0; t < dur; t++ {
		pred := weights[features]
		row := covData[t*features : (t+1)*features]
		for j, x := range row {
			pred += weights[j] * x
		}
		r := pred - y[t]
		sumSq += r * r
	}
	sigma := math.Sqrt(sumSq / float64(dur))
	if sigma < 1e-3 {
		sigma = 1e-3
	}
	return weights, sigma
}
