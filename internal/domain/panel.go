package domain

// panel.go — panel jerárquico de ventas: series bottom-level más los
// niveles de agregación (total, por tienda, por artículo, ...) definidos
// como agrupaciones sobre las series bottom.

import "fmt"

// Level define un nivel de agregación: para cada serie bottom, el índice
// del grupo al que pertenece dentro del nivel.
type Level struct {
	Name   string
	Groups []int // índice de grupo por serie bottom
	Count  int   // número de grupos del nivel
}

// Validate verifica que el nivel sea consistente con n series bottom.
func (l Level) Validate(n int) error {
	if len(l.Groups) != n {
		return fmt.Errorf("domain.Level %q: %d group indices for %d series", l.Name, len(l.Groups), n)
	}
	for i, g := range l.Groups {
		if g < 0 || g >= l.Count {
			return fmt.Errorf("domain.Level %q: series %d has group %d outside [0, %d)", l.Name, i, g, l.Count)
		}
	}
	return nil
}

// Hierarchy es la jerarquía de agregación del panel, del total al detalle.
type Hierarchy struct {
	Levels []Level
}

// TotalSeries devuelve el número de series agregadas sumando todos los niveles.
func (h Hierarchy) TotalSeries() int {
	n := 0
	for _, l := range h.Levels {
		n += l.Count
	}
	return n
}

// Panel contiene las ventas bottom-level y su jerarquía de agregación.
type Panel struct {
	IDs       []string  // id de cada serie bottom
	Sales     *Tensor   // [n_series, duration, 1]
	Prices    []float64 // precio unitario por serie bottom (nil: todo 1)
	Hierarchy Hierarchy
}

// BottomCount devuelve el número de series bottom-level.
func (p *Panel) BottomCount() int { return p.Sales.Shape[0] }

// Duration devuelve el número de pasos temporales del panel.
func (p *Panel) Duration() int { return p.Sales.Duration() }

// AggregatedSales suma las ventas bottom según el nivel dado.
// El resultado tiene shape [level.Count, duration, 1].
func (p *Panel) AggregatedSales(level Level) (*Tensor, error) {
	if err := level.Validate(p.BottomCount()); err != nil {
		return nil, fmt.Errorf("domain.AggregatedSales: %w", err)
	}
	dur := p.Duration()
	out := Zeros(level.Count, dur, 1)
	for i, g := range level.Groups {
		for t := 0; t < dur; t++ {
			out.Data[g*dur+t] += p.Sales.Data[i*dur+t]
		}
	}
	return out, nil
}

// DollarWeights construye los pesos de importancia [n_series, duration]:
// en cada paso, las ventas en dinero acumuladas de la serie durante los
// últimos `window` pasos. Son los pesos que el backtest normaliza por paso
// y corta en t1-1.
func (p *Panel) DollarWeights(window int) (*Tensor, error) {
	if window <= 0 {
		return nil, fmt.Errorf("domain.DollarWeights: window must be positive, got %d", window)
	}
	n := p.BottomCount()
	dur := p.Duration()

	out := Zeros(n, dur)
	for i := 0; i < n; i++ {
		price := 1.0
		if p.Prices != nil {
			price = p.Prices[i]
		}
		rolling := 0.0
		for t := 0; t < dur; t++ {
			rolling += p.Sales.Data[i*dur+t] * price
			if t >= window {
				rolling -= p.Sales.Data[i*dur+t-window] * price
			}
			out.Data[i*dur+t] = rolling
		}
	}
	return out, nil
}

// AggregateSamples suma un ensemble bottom-level [num_samples, n_series,
// duration] a través de cada nivel pedido y concatena los resultados:
// [num_samples, total_series, duration], en el orden de los niveles.
func AggregateSamples(samples *Tensor, levels ...Level) (*Tensor, error) {
	if len(samples.Shape) != 3 {
		return nil, fmt.Errorf("domain.AggregateSamples: want samples shape [num_samples, n_series, duration], got %v", samples.Shape)
	}
	numSamples, n, dur := samples.Shape[0], samples.Shape[1], samples.Shape[2]

	total := 0
	for _, l := range levels {
		if err := l.Validate(n); err != nil {
			return nil, fmt.Errorf("domain.AggregateSamples: %w", err)
		}
		total += l.Count
	}

	out := Zeros(numSamples, total, dur)
	offset := 0
	for _, l := range levels {
		for s := 0; s < numSamples; s++ {
			for i, g := range l.Groups {
				src := samples.Data[(s*n+i)*dur : (s*n+i+1)*dur]
				dst := out.Data[(s*total+offset+g)*dur : (s*total+offset+g+1)*dur]
				for t, v := range src {
					dst[t] += v
				}
			}
		}
		offset += l.Count
	}
	return out, nil
}
