package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/salesbench/internal/domain"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

// naiveForecaster repite el último valor de entrenamiento en cada sample.
// Determinista: ideal para verificar la mecánica del orquestador.
type naiveForecaster struct {
	failAtTrainLen int // si > 0, falla cuando el train dura exactamente eso
}

func (f *naiveForecaster) Forecast(_ context.Context, train, _ *domain.Tensor, horizon, numSamples int, _ uint64) (*domain.Tensor, error) {
	dur := train.Duration()
	if f.failAtTrainLen > 0 && dur == f.failAtTrainLen {
		return nil, errors.New("model diverged")
	}
	batch := train.BatchSize()
	ch := train.Channels()

	shape := append([]int{numSamples}, train.BatchShape()...)
	shape = append(shape, horizon, ch)
	out := domain.Zeros(shape...)
	for s := 0; s < numSamples; s++ {
		for b := 0; b < batch; b++ {
			for t := 0; t < horizon; t++ {
				for c := 0; c < ch; c++ {
					last := train.Data[(b*dur+(dur-1))*ch+c]
					out.Data[((s*batch+b)*horizon+t)*ch+c] = last
				}
			}
		}
	}
	return out, nil
}

func factory(f ports.Forecaster) ports.ForecasterFactory {
	return func() ports.Forecaster { return f }
}

// rampData construye una serie creciente t+1 de la duración dada (sin ceros).
func rampData(t *testing.T, dur int) (*domain.Tensor, *domain.Tensor) {
	t.Helper()
	data := domain.Zeros(1, dur, 1)
	for i := 0; i < dur; i++ {
		data.Data[i] = float64(i + 1)
	}
	cov := domain.Zeros(dur, 1)
	for i := 0; i < dur; i++ {
		cov.Data[i] = float64(i) / 365
	}
	return data, cov
}

func TestBacktest_WindowBoundaries(t *testing.T) {
	// Escenario C: 3 ventanas, test de 28, stride 35 sobre 400 pasos
	// → t1 en 302, 337, 372, espaciados exactamente por el stride.
	data, cov := rampData(t, 400)

	b := New(Config{
		NumWindows: 3,
		TestWindow: 28,
		Stride:     35,
		NumSamples: 10,
		Seed:       1,
	}, factory(&naiveForecaster{}))

	windows, err := b.Run(context.Background(), data, cov, nil)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	prev := 0
	for i, w := range windows {
		assert.Equal(t, 0, w.T0)
		assert.Equal(t, w.T1+28, w.T2)
		if i > 0 {
			assert.Equal(t, 35, w.T1-prev, "stride entre ventanas")
		}
		prev = w.T1
	}
	assert.Equal(t, 302, windows[0].T1)
	assert.Equal(t, 400, windows[2].T2)
}

func TestBacktest_RecordsAllMetricsAndWeighted(t *testing.T) {
	data, cov := rampData(t, 120)

	b := New(Config{
		NumWindows: 2,
		TestWindow: 14,
		Stride:     14,
		NumSamples: 20,
		Seed:       3,
	}, factory(&naiveForecaster{}))

	windows, err := b.Run(context.Background(), data, cov, nil)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	for _, w := range windows {
		for _, name := range []string{"mae", "rmse", "crps", "pl"} {
			require.Contains(t, w.Metrics, name)
			assert.Contains(t, w.Weighted, "ws_"+name)
			assert.True(t, w.Metrics[name].Size() == 1)
		}
	}
}

func TestBacktest_MinTrainWindowRaised(t *testing.T) {
	// Una serie con 5 ceros iniciales fuerza min_train_window a 7 aunque el
	// caller pida 1: la escala naive necesita ≥ 2 pasos activos.
	dur := 20
	data := domain.Zeros(1, dur, 1)
	for i := 5; i < dur; i++ {
		data.Data[i] = float64(i)
	}
	cov := domain.Zeros(dur, 1)

	b := New(Config{
		MinTrainWindow: 1,
		TestWindow:     2,
		Stride:         3,
		NumSamples:     5,
	}, factory(&naiveForecaster{}))

	windows, err := b.Run(context.Background(), data, cov, nil)
	require.NoError(t, err)
	require.NotEmpty(t, windows)
	assert.Equal(t, 7, windows[0].T1, "primera ventana tras la racha de ceros + 2")
}

func TestBacktest_WeightRescaleInvariant(t *testing.T) {
	// Los pesos se renormalizan a suma 1: multiplicarlos todos por una
	// constante positiva no cambia ningún ws_<métrica>.
	dur := 60
	data := domain.Zeros(2, dur, 1)
	for b := 0; b < 2; b++ {
		for i := 0; i < dur; i++ {
			data.Data[b*dur+i] = float64((b+1)*10 + i%7)
		}
	}
	cov := domain.Zeros(dur, 1)

	weight := domain.Zeros(2, dur)
	for i := range weight.Data {
		weight.Data[i] = 1
	}
	scaled := weight.Clone()
	for i := range scaled.Data {
		scaled.Data[i] *= 123.0
	}

	cfg := Config{NumWindows: 2, TestWindow: 7, Stride: 7, NumSamples: 10}
	a, err := New(cfg, factory(&naiveForecaster{})).Run(context.Background(), data, cov, weight)
	require.NoError(t, err)
	b, err := New(cfg, factory(&naiveForecaster{})).Run(context.Background(), data, cov, scaled)
	require.NoError(t, err)

	for i := range a {
		for key, v := range a[i].Weighted {
			assert.InDelta(t, v, b[i].Weighted[key], 1e-12, key)
		}
	}
}

func TestBacktest_ForecasterFailureAborts(t *testing.T) {
	data, cov := rampData(t, 400)

	b := New(Config{
		NumWindows: 3,
		TestWindow: 28,
		Stride:     35,
		NumSamples: 5,
	}, factory(&naiveForecaster{failAtTrainLen: 337}))

	windows, err := b.Run(context.Background(), data, cov, nil)
	require.Error(t, err, "el fallo de una ventana aborta el backtest completo")
	assert.Nil(t, windows, "sin resultados parciales")
	assert.Contains(t, err.Error(), "window 1")
}

func TestBacktest_ParallelMatchesSequential(t *testing.T) {
	data, cov := rampData(t, 400)

	seqCfg := Config{NumWindows: 3, TestWindow: 28, Stride: 35, NumSamples: 10, Seed: 7}
	parCfg := seqCfg
	parCfg.Workers = 4

	seq, err := New(seqCfg, factory(&naiveForecaster{})).Run(context.Background(), data, cov, nil)
	require.NoError(t, err)
	par, err := New(parCfg, func() ports.Forecaster { return &naiveForecaster{} }).Run(context.Background(), data, cov, nil)
	require.NoError(t, err)

	require.Len(t, par, len(seq))
	for i := range seq {
		assert.Equal(t, seq[i].T1, par[i].T1)
		for key, v := range seq[i].Weighted {
			assert.InDelta(t, v, par[i].Weighted[key], 1e-12, key)
		}
	}
}

func TestBacktest_WeightShapeMismatch(t *testing.T) {
	data, cov := rampData(t, 50)
	badWeight := domain.Zeros(2, 50) // data tiene 1 serie

	b := New(Config{NumWindows: 1, TestWindow: 5, Stride: 5, NumSamples: 5}, factory(&naiveForecaster{}))
	_, err := b.Run(context.Background(), data, cov, badWeight)
	require.Error(t, err)
}

func TestBacktest_TransformApplied(t *testing.T) {
	// El transform se aplica a predicción y verdad antes de puntuar: un
	// transform identidad-cero anula el error de cualquier forecast.
	data, cov := rampData(t, 100)

	zero := func(pred, truth *domain.Tensor) (*domain.Tensor, *domain.Tensor) {
		return domain.Zeros(pred.Shape...), domain.Zeros(truth.Shape...)
	}
	b := New(Config{
		NumWindows: 1,
		TestWindow: 10,
		Stride:     10,
		NumSamples: 5,
		Transform:  zero,
	}, factory(&naiveForecaster{}))

	windows, err := b.Run(context.Background(), data, cov, nil)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.InDelta(t, 0.0, windows[0].Metrics["mae"].Data[0], 1e-12)
}
