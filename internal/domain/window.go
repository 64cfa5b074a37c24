package domain

import "time"

// Window es el registro inmutable de una iteración de backtest:
// entrenamiento en [T0, T1), evaluación en [T1, T2).
// Se construye una vez por ventana y no se muta después.
type Window struct {
	T0 int
	T1 int
	T2 int

	// Metrics contiene el error crudo por serie, por nombre de métrica.
	Metrics map[string]*Tensor
	// Weighted contiene los escalares ponderados y escalados, con clave
	// "ws_<métrica>" (ws_rmse, ws_pl, ...).
	Weighted map[string]float64
}

// BacktestRun agrupa la secuencia ordenada de ventanas de una ejecución.
type BacktestRun struct {
	ID        string
	StartedAt time.Time
	Model     string
	Seed      uint64
	Windows   []Window
}
