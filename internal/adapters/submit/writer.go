package submit

// writer.go — ficheros de submission en formato de competición.
//
// Dos tablas: accuracy (forecast puntual por serie) y uncertainty (una fila
// por serie y cuantil). Valores con 3 decimales, columnas F1..Fh.

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// WriteAccuracy escribe la tabla de forecasts puntuales: una fila por serie,
// columnas id, F1..Fh. prediction es [n_series, horizon].
func WriteAccuracy(w io.Writer, ids []string, prediction *domain.Tensor) error {
	if len(prediction.Shape) != 2 {
		return fmt.Errorf("submit.WriteAccuracy: want prediction [n_series, horizon], got shape %v", prediction.Shape)
	}
	n, horizon := prediction.Shape[0], prediction.Shape[1]
	if len(ids) != n {
		return fmt.Errorf("submit.WriteAccuracy: %d ids for %d series", len(ids), n)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header(horizon)); err != nil {
		return fmt.Errorf("submit.WriteAccuracy: header: %w", err)
	}
	row := make([]string, horizon+1)
	for i := 0; i < n; i++ {
		row[0] = ids[i]
		for t := 0; t < horizon; t++ {
			row[t+1] = strconv.FormatFloat(prediction.Data[i*horizon+t], 'f', 3, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("submit.WriteAccuracy: row %s: %w", ids[i], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUncertainty escribe la tabla de cuantiles: una fila por serie y
// cuantil, con id "<serie>_<cuantil>". q es [len(quantiles), n_series,
// horizon].
func WriteUncertainty(w io.Writer, ids []string, q *domain.Tensor, quantiles []float64) error {
	if len(q.Shape) != 3 {
		return fmt.Errorf("submit.WriteUncertainty: want quantiles [n_quantiles, n_series, horizon], got shape %v", q.Shape)
	}
	nq, n, horizon := q.Shape[0], q.Shape[1], q.Shape[2]
	if nq != len(quantiles) {
		return fmt.Errorf("submit.WriteUncertainty: tensor has %d quantile rows, got %d levels", nq, len(quantiles))
	}
	if len(ids) != n {
		return fmt.Errorf("submit.WriteUncertainty: %d ids for %d series", len(ids), n)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header(horizon)); err != nil {
		return fmt.Errorf("submit.WriteUncertainty: header: %w", err)
	}
	row := make([]string, horizon+1)
	for i := 0; i < n; i++ {
		for qi, level := range quantiles {
			row[0] = fmt.Sprintf("%s_%.3f", ids[i], level)
			for t := 0; t < horizon; t++ {
				row[t+1] = strconv.FormatFloat(q.Data[(qi*n+i)*horizon+t], 'f', 3, 64)
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("submit.WriteUncertainty: row %s: %w", row[0], err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAccuracyFile y WriteUncertaintyFile son las variantes a fichero que
// usa el CLI.
func WriteAccuracyFile(path string, ids []string, prediction *domain.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("submit.WriteAccuracyFile: create %q: %w", path, err)
	}
	defer f.Close()
	return WriteAccuracy(f, ids, prediction)
}

func WriteUncertaintyFile(path string, ids []string, q *domain.Tensor, quantiles []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("submit.WriteUncertaintyFile: create %q: %w", path, err)
	}
	defer f.Close()
	return WriteUncertainty(f, ids, q, quantiles)
}

func header(horizon int) []string {
	h := make([]string, horizon+1)
	h[0] = "id"
	for t := 1; t <= horizon; t++ {
		h[t] = "F" + strconv.Itoa(t)
	}
	return h
}
