package storage

// sqlite.go — persistencia de ejecuciones de backtest.
//
// Estrategia:
//   - `runs`: una fila por ejecución (uuid, modelo, semilla, timestamp).
//   - `windows`: una fila por ventana con sus fronteras [t0, t1, t2) y su
//     índice dentro de la ejecución. La lectura ordena por ese índice, así
//     que el orden cronológico sobrevive al viaje por la base de datos.
//   - `window_values`: una fila por clave de cada ventana. Los escalares
//     ws_* van en la columna REAL; los tensores de métrica cruda van como
//     JSON (shape + data) — su tamaño es por-serie, no por-paso, así que
//     el JSON se queda pequeño incluso en paneles grandes.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/salesbench/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por ejecución de backtest
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    model      TEXT     NOT NULL,
    seed       INTEGER  NOT NULL DEFAULT 0
);

-- Una fila por ventana, ordenable por win_idx
CREATE TABLE IF NOT EXISTS windows (
    run_id  TEXT    NOT NULL REFERENCES runs(id),
    win_idx INTEGER NOT NULL,
    t0      INTEGER NOT NULL,
    t1      INTEGER NOT NULL,
    t2      INTEGER NOT NULL,
    PRIMARY KEY (run_id, win_idx)
);

-- Valores por ventana: escalar ws_* o tensor JSON de métrica cruda
CREATE TABLE IF NOT EXISTS window_values (
    run_id  TEXT    NOT NULL,
    win_idx INTEGER NOT NULL,
    key     TEXT    NOT NULL,
    scalar  REAL,
    tensor  TEXT,
    PRIMARY KEY (run_id, win_idx, key)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// tensorJSON es la forma serializada de un domain.Tensor.
type tensorJSON struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// SQLiteStore implementa ports.ResultStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveBacktest persiste la ejecución completa en una única transacción:
// o se guarda todo o no se guarda nada.
func (s *SQLiteStore) SaveBacktest(ctx context.Context, run *domain.BacktestRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktest: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, model, seed) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Model, int64(run.Seed),
	); err != nil {
		return fmt.Errorf("storage.SaveBacktest: insert run %s: %w", run.ID, err)
	}

	winStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO windows (run_id, win_idx, t0, t1, t2) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktest: prepare windows: %w", err)
	}
	defer winStmt.Close()

	valStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO window_values (run_id, win_idx, key, scalar, tensor) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktest: prepare values: %w", err)
	}
	defer valStmt.Close()

	for i, w := range run.Windows {
		if _, err := winStmt.ExecContext(ctx, run.ID, i, w.T0, w.T1, w.T2); err != nil {
			return fmt.Errorf("storage.SaveBacktest: insert window %d: %w", i, err)
		}
		for key, v := range w.Weighted {
			if _, err := valStmt.ExecContext(ctx, run.ID, i, key, v, nil); err != nil {
				return fmt.Errorf("storage.SaveBacktest: insert %s window %d: %w", key, i, err)
			}
		}
		for key, tensor := range w.Metrics {
			blob, err := json.Marshal(tensorJSON{Shape: tensor.Shape, Data: tensor.Data})
			if err != nil {
				return fmt.Errorf("storage.SaveBacktest: marshal %s window %d: %w", key, i, err)
			}
			if _, err := valStmt.ExecContext(ctx, run.ID, i, key, nil, string(blob)); err != nil {
				return fmt.Errorf("storage.SaveBacktest: insert %s window %d: %w", key, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveBacktest: commit: %w", err)
	}
	return nil
}

// LoadBacktest recupera una ejecución con sus ventanas en orden cronológico.
func (s *SQLiteStore) LoadBacktest(ctx context.Context, id string) (*domain.BacktestRun, error) {
	run := &domain.BacktestRun{ID: id}
	var startedAt time.Time
	var seed int64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, model, seed FROM runs WHERE id = ?`, id,
	).Scan(&startedAt, &run.Model, &seed)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadBacktest: run %s: %w", id, err)
	}
	run.StartedAt = startedAt
	run.Seed = uint64(seed)

	rows, err := s.db.QueryContext(ctx,
		`SELECT win_idx, t0, t1, t2 FROM windows WHERE run_id = ? ORDER BY win_idx`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadBacktest: query windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var w domain.Window
		if err := rows.Scan(&idx, &w.T0, &w.T1, &w.T2); err != nil {
			return nil, fmt.Errorf("storage.LoadBacktest: scan window: %w", err)
		}
		w.Metrics = make(map[string]*domain.Tensor)
		w.Weighted = make(map[string]float64)
		run.Windows = append(run.Windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadBacktest: windows: %w", err)
	}

	if err := s.loadValues(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// loadValues rellena Metrics y Weighted de cada ventana ya cargada.
func (s *SQLiteStore) loadValues(ctx context.Context, run *domain.BacktestRun) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT win_idx, key, scalar, tensor FROM window_values WHERE run_id = ?`, run.ID)
	if err != nil {
		return fmt.Errorf("storage.loadValues: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var key string
		var scalar sql.NullFloat64
		var blob sql.NullString
		if err := rows.Scan(&idx, &key, &scalar, &blob); err != nil {
			return fmt.Errorf("storage.loadValues: scan: %w", err)
		}
		if idx < 0 || idx >= len(run.Windows) {
			return fmt.Errorf("storage.loadValues: window index %d outside run %s", idx, run.ID)
		}
		switch {
		case blob.Valid:
			var tj tensorJSON
			if err := json.Unmarshal([]byte(blob.String), &tj); err != nil {
				return fmt.Errorf("storage.loadValues: unmarshal %s: %w", key, err)
			}
			tensor, err := domain.NewTensor(tj.Shape, tj.Data)
			if err != nil {
				return fmt.Errorf("storage.loadValues: rebuild %s: %w", key, err)
			}
			run.Windows[idx].Metrics[key] = tensor
		case scalar.Valid:
			run.Windows[idx].Weighted[key] = scalar.Float64
		}
	}
	return rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
