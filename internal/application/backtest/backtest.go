package backtest

// backtest.go — orquestador de evaluación por ventanas deslizantes.
//
// Para cada ventana [t0, t1) / [t1, t2):
// 1. Entrena el Forecaster externo con el historial [0, t1) y obtiene un
//    ensemble de samples para el intervalo de test.
// 2. Calcula cada métrica cruda contra la verdad.
// 3. Normaliza la métrica con la escala naive del historial y los pesos de
//    importancia vigentes justo antes de t1, guardando el escalar ws_<métrica>.
//
// Un fallo del Forecaster en cualquier ventana aborta el backtest completo:
// la comparabilidad entre ventanas exige metodología consistente, así que
// no se descartan ventanas en silencio.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/salesbench/internal/domain"
	"github.com/alejandrodnm/salesbench/internal/ports"
)

// Transform ajusta predicción y verdad antes de puntuar (p. ej. exp para
// modelos entrenados en escala log). Recibe el ensemble y la verdad y
// devuelve el par transformado.
type Transform func(pred, truth *domain.Tensor) (*domain.Tensor, *domain.Tensor)

// Config controla la generación de ventanas y la evaluación.
type Config struct {
	// NumWindows > 0 deriva MinTrainWindow para que quepan exactamente
	// NumWindows ventanas; con 0 se respeta MinTrainWindow tal cual.
	NumWindows     int
	TestWindow     int
	Stride         int
	MinTrainWindow int
	NumSamples     int
	Workers        int // ventanas en paralelo (<= 1: secuencial)
	Seed           uint64

	// Metrics nil usa las cuatro métricas estándar.
	Metrics   map[string]domain.Metric
	Transform Transform
}

// Backtester ejecuta el ciclo train/score sobre ventanas crecientes.
type Backtester struct {
	cfg           Config
	newForecaster ports.ForecasterFactory
}

// New crea un Backtester. La factory produce una instancia independiente de
// Forecaster por ventana cuando se ejecuta en paralelo.
func New(cfg Config, factory ports.ForecasterFactory) *Backtester {
	return &Backtester{cfg: cfg, newForecaster: factory}
}

// Run ejecuta el backtest completo sobre data [...batch, duration, channels]
// con covariables [duration, features] y pesos [...batch, duration]
// (nil = pesos uniformes). Devuelve una ventana por iteración, en orden
// cronológico.
func (b *Backtester) Run(ctx context.Context, data, covariates, weight *domain.Tensor) ([]domain.Window, error) {
	dur := data.Duration()

	metrics := b.cfg.Metrics
	if metrics == nil {
		metrics = domain.DefaultMetrics()
	}

	if weight == nil {
		weight = onesWeight(data)
	}
	wantShape := append(append([]int(nil), data.BatchShape()...), dur)
	if !sameInts(weight.Shape, wantShape) {
		return nil, fmt.Errorf("backtest.Run: weight shape %v does not match data series shape %v", weight.Shape, wantShape)
	}
	if covariates.Duration() < dur {
		return nil, fmt.Errorf("backtest.Run: covariates cover %d steps, data has %d", covariates.Duration(), dur)
	}
	// pesos proporcionales: en cada paso temporal suman 1 sobre las series
	normWeight := domain.NormalizeWeights(weight)

	t1s, err := b.windowStarts(data)
	if err != nil {
		return nil, err
	}

	slog.Info("backtest starting",
		"windows", len(t1s),
		"test_window", b.cfg.TestWindow,
		"stride", b.cfg.Stride,
		"num_samples", b.cfg.NumSamples,
		"workers", b.cfg.Workers,
	)

	return b.runWindows(ctx, t1s, data, covariates, normWeight, metrics)
}

// windowStarts calcula los t1 de cada ventana, subiendo la ventana mínima
// de entrenamiento si hace falta para que la escala naive sea computable.
func (b *Backtester) windowStarts(data *domain.Tensor) ([]int, error) {
	dur := data.Duration()
	if b.cfg.TestWindow <= 0 || b.cfg.Stride <= 0 {
		return nil, fmt.Errorf("backtest.windowStarts: test_window and stride must be positive")
	}

	minTrain := b.cfg.MinTrainWindow
	if b.cfg.NumWindows > 0 {
		// ventana mínima para que quepan exactamente NumWindows ventanas
		minTrain = dur - b.cfg.TestWindow - (b.cfg.NumWindows-1)*b.cfg.Stride
	}

	// garantía anti división-por-cero de la escala: al menos 2 pasos más
	// que la racha inicial de ceros más larga de todas las series
	if guard := maxLeadingZeros(data) + 2; minTrain < guard {
		slog.Info("min_train_window raised to be able to compute scaled metrics",
			"requested", minTrain,
			"raised_to", guard,
		)
		minTrain = guard
	}
	if minTrain < 1 || minTrain+b.cfg.TestWindow > dur {
		return nil, fmt.Errorf("backtest.windowStarts: no room for a single window (min_train=%d, test_window=%d, duration=%d)", minTrain, b.cfg.TestWindow, dur)
	}

	var t1s []int
	for t1 := minTrain; t1+b.cfg.TestWindow <= dur; t1 += b.cfg.Stride {
		t1s = append(t1s, t1)
	}
	return t1s, nil
}

// runWindow evalúa una ventana: forecast + métricas crudas + ws_<métrica>.
func (b *Backtester) runWindow(
	ctx context.Context,
	forecaster ports.Forecaster,
	data, covariates, normWeight *domain.Tensor,
	metrics map[string]domain.Metric,
	idx, t1 int,
) (domain.Window, error) {
	t2 := t1 + b.cfg.TestWindow

	train, err := data.SliceTime(0, t1)
	if err != nil {
		return domain.Window{}, fmt.Errorf("slice train: %w", err)
	}
	truth, err := data.SliceTime(t1, t2)
	if err != nil {
		return domain.Window{}, fmt.Errorf("slice truth: %w", err)
	}
	cov, err := covariates.SliceTime(0, t2)
	if err != nil {
		return domain.Window{}, fmt.Errorf("slice covariates: %w", err)
	}

	// semilla explícita por ventana: reproducible e independiente
	ensemble, err := forecaster.Forecast(ctx, train, cov, b.cfg.TestWindow, b.cfg.NumSamples, b.cfg.Seed+uint64(idx))
	if err != nil {
		return domain.Window{}, fmt.Errorf("forecast: %w", err)
	}

	pred := ensemble
	scored := truth
	if b.cfg.Transform != nil {
		pred, scored = b.cfg.Transform(ensemble, truth)
	}

	// pesos vigentes justo antes del comienzo del test
	w, err := domain.WeightsAt(normWeight, t1-1)
	if err != nil {
		return domain.Window{}, fmt.Errorf("weights at t1-1: %w", err)
	}

	win := domain.Window{
		T0:       0,
		T1:       t1,
		T2:       t2,
		Metrics:  make(map[string]*domain.Tensor, len(metrics)),
		Weighted: make(map[string]float64, len(metrics)),
	}
	for name, metric := range metrics {
		value, err := metric(pred, scored)
		if err != nil {
			return domain.Window{}, fmt.Errorf("metric %s: %w", name, err)
		}
		win.Metrics[name] = value

		ws, err := domain.WeightedScaled(name, value, train, w)
		if err != nil {
			return domain.Window{}, fmt.Errorf("weighted scale %s: %w", name, err)
		}
		win.Weighted["ws_"+name] = ws
	}
	return win, nil
}

// onesWeight construye pesos uniformes [...batch, duration].
func onesWeight(data *domain.Tensor) *domain.Tensor {
	shape := append(append([]int(nil), data.BatchShape()...), data.Duration())
	w := domain.Zeros(shape...)
	for i := range w.Data {
		w.Data[i] = 1
	}
	return w
}

// maxLeadingZeros devuelve la racha inicial de pasos totalmente en cero
// más larga entre todas las series del panel.
func maxLeadingZeros(data *domain.Tensor) int {
	batch := data.BatchSize()
	dur := data.Duration()
	ch := data.Channels()

	maxRun := 0
	for b := 0; b < batch; b++ {
		cum := 0.0
		run := 0
		for t := 0; t < dur; t++ {
			for c := 0; c < ch; c++ {
				cum += data.Data[(b*dur+t)*ch+c]
			}
			if cum != 0 {
				break
			}
			run++
		}
		if run > maxRun {
			maxRun = run
		}
	}
	return maxRun
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
