package dataset

// synthetic.go — proveedor de panel sintético jerárquico.
//
// Genera un panel tiendas × artículos con ventas Poisson, estacionalidad
// semanal y lanzamientos retrasados de producto, de forma determinista a
// partir de una semilla. Los lanzamientos tardíos producen las rachas de
// ceros iniciales que fuerzan la subida automática de la ventana mínima de
// entrenamiento, así que el benchmark ejercita exactamente los mismos casos
// límite que un dataset minorista real.

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// weeklyPattern modula la tasa de ventas por día de la semana.
var weeklyPattern = [7]float64{0.8, 0.7, 0.75, 0.85, 1.0, 1.5, 1.4}

// Config dimensiona el panel sintético.
type Config struct {
	Stores         int
	Items          int
	Duration       int
	Seed           uint64
	MaxLaunchDelay int // retraso máximo (pasos) del lanzamiento de un artículo
}

// Synthetic implementa ports.DatasetProvider con datos generados.
type Synthetic struct {
	cfg Config
}

// NewSynthetic valida las dimensiones y crea el proveedor.
func NewSynthetic(cfg Config) (*Synthetic, error) {
	if cfg.Stores <= 0 || cfg.Items <= 0 || cfg.Duration <= 0 {
		return nil, fmt.Errorf("dataset.NewSynthetic: stores, items and duration must be positive, got %d/%d/%d", cfg.Stores, cfg.Items, cfg.Duration)
	}
	if cfg.MaxLaunchDelay >= cfg.Duration {
		return nil, fmt.Errorf("dataset.NewSynthetic: max launch delay %d leaves no history (duration %d)", cfg.MaxLaunchDelay, cfg.Duration)
	}
	return &Synthetic{cfg: cfg}, nil
}

// Panel genera las series bottom (orden tienda-mayor) con su jerarquía
// total / tienda / artículo y precios unitarios por artículo.
func (p *Synthetic) Panel(ctx context.Context) (*domain.Panel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := p.cfg
	n := cfg.Stores * cfg.Items
	rng := rand.New(rand.NewSource(cfg.Seed))

	// tasas base y retrasos por artículo, factor por tienda
	itemBase := make([]float64, cfg.Items)
	launch := make([]int, cfg.Items)
	prices := make([]float64, cfg.Items)
	for i := range itemBase {
		itemBase[i] = 0.5 + rng.Float64()*4
		prices[i] = 1 + rng.Float64()*19
		if cfg.MaxLaunchDelay > 0 && rng.Float64() < 0.3 {
			launch[i] = rng.Intn(cfg.MaxLaunchDelay + 1)
		}
	}
	storeFactor := make([]float64, cfg.Stores)
	for s := range storeFactor {
		storeFactor[s] = 0.6 + rng.Float64()*0.8
	}

	ids := make([]string, 0, n)
	priceBySeries := make([]float64, 0, n)
	sales := domain.Zeros(n, cfg.Duration, 1)
	idx := 0
	for s := 0; s < cfg.Stores; s++ {
		for i := 0; i < cfg.Items; i++ {
			ids = append(ids, fmt.Sprintf("S%02d_I%03d", s, i))
			priceBySeries = append(priceBySeries, prices[i])
			for t := launch[i]; t < cfg.Duration; t++ {
				rate := itemBase[i] * storeFactor[s] * weeklyPattern[t%7]
				pois := distuv.Poisson{Lambda: rate, Src: rng}
				sales.Data[idx*cfg.Duration+t] = pois.Rand()
			}
			idx++
		}
	}

	// el último nivel es la identidad: las propias series bottom, igual que
	// en la jerarquía de la competición, así que la re-agregación de samples
	// también produce cuantiles por serie individual
	hier := domain.Hierarchy{Levels: []domain.Level{
		totalLevel(n),
		storeLevel(cfg.Stores, cfg.Items),
		itemLevel(cfg.Stores, cfg.Items),
		bottomLevel(n),
	}}
	for _, l := range hier.Levels {
		if err := l.Validate(n); err != nil {
			return nil, fmt.Errorf("dataset.Panel: %w", err)
		}
	}

	slog.Debug("synthetic panel generated",
		"stores", cfg.Stores,
		"items", cfg.Items,
		"series", n,
		"duration", cfg.Duration,
	)
	return &domain.Panel{IDs: ids, Sales: sales, Prices: priceBySeries, Hierarchy: hier}, nil
}

// Covariates devuelve [duration+horizon, 8]: tiempo escalado más one-hot
// del día de la semana.
func (p *Synthetic) Covariates(horizon int) (*domain.Tensor, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("dataset.Covariates: negative horizon %d", horizon)
	}
	total := p.cfg.Duration + horizon
	out := domain.Zeros(total, 8)
	for t := 0; t < total; t++ {
		out.Data[t*8] = float64(t) / float64(p.cfg.Duration)
		out.Data[t*8+1+t%7] = 1
	}
	return out, nil
}

func totalLevel(n int) domain.Level {
	return domain.Level{Name: "total", Groups: make([]int, n), Count: 1}
}

func storeLevel(stores, items int) domain.Level {
	groups := make([]int, stores*items)
	for s := 0; s < stores; s++ {
		for i := 0; i < items; i++ {
			groups[s*items+i] = s
		}
	}
	return domain.Level{Name: "store", Groups: groups, Count: stores}
}

func itemLevel(stores, items int) domain.Level {
	groups := make([]int, stores*items)
	for s := 0; s < stores; s++ {
		for i := 0; i < items; i++ {
			groups[s*items+i] = i
		}
	}
	return domain.Level{Name: "item", Groups: groups, Count: items}
}

// bottomLevel es la agrupación identidad: cada serie bottom es su propio grupo.
func bottomLevel(n int) domain.Level {
	groups := make([]int, n)
	for i := range groups {
		groups[i] = i
	}
	return domain.Level{Name: "bottom", Groups: groups, Count: n}
}
