package notify

// console.go — informe de backtest por consola.
//
// Una tabla con las fronteras y los ws_* de cada ventana, seguida del
// resumen media ± desviación por métrica, que es el número que de verdad
// se compara entre modelos.

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// Console implementa ports.Notifier escribiendo a un io.Writer.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// NotifyBacktest imprime la tabla de ventanas y el resumen agregado.
func (c *Console) NotifyBacktest(_ context.Context, run *domain.BacktestRun) error {
	fmt.Fprintf(c.out, "\n[%s] backtest %s — model %s, seed %d, %d windows\n",
		run.StartedAt.Format("2006-01-02 15:04:05"), run.ID, run.Model, run.Seed, len(run.Windows))

	if len(run.Windows) == 0 {
		fmt.Fprintln(c.out, "  no windows evaluated")
		return nil
	}

	keys := weightedKeys(run.Windows)

	table := tablewriter.NewWriter(c.out)
	header := []string{"#", "train", "test"}
	header = append(header, keys...)
	table.Header(toAny(header)...)

	for i, w := range run.Windows {
		row := []string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("[%d, %d)", w.T0, w.T1),
			fmt.Sprintf("[%d, %d)", w.T1, w.T2),
		}
		for _, k := range keys {
			row = append(row, fmt.Sprintf("%.5g", w.Weighted[k]))
		}
		table.Append(toAny(row)...)
	}
	table.Render()

	fmt.Fprintln(c.out)
	for _, k := range keys {
		values := make([]float64, len(run.Windows))
		for i, w := range run.Windows {
			values[i] = w.Weighted[k]
		}
		mean, err := stats.Mean(values)
		if err != nil {
			return fmt.Errorf("notify.NotifyBacktest: mean %s: %w", k, err)
		}
		std, err := stats.StandardDeviation(values)
		if err != nil {
			return fmt.Errorf("notify.NotifyBacktest: std %s: %w", k, err)
		}
		fmt.Fprintf(c.out, "  %s = %.5g +- %.5g\n", k, mean, std)
	}
	fmt.Fprintln(c.out)
	return nil
}

// weightedKeys devuelve la unión ordenada de claves ws_* de todas las ventanas.
func weightedKeys(windows []domain.Window) []string {
	seen := map[string]bool{}
	for _, w := range windows {
		for k := range w.Weighted {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
