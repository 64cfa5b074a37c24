package topdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/alejandrodnm/salesbench/internal/domain"
)

// bottomPanel construye un panel [n, dur, 1] con ventas constantes por serie.
func bottomPanel(t *testing.T, perStep []float64, dur int) *domain.Tensor {
	t.Helper()
	n := len(perStep)
	out := domain.Zeros(n, dur, 1)
	for i, v := range perStep {
		for step := 0; step < dur; step++ {
			out.Data[i*dur+step] = v
		}
	}
	return out
}

func TestProportion_SharesOfRecentSales(t *testing.T) {
	// Dos series vendiendo 1 y 3 por paso → proporciones 0.25 y 0.75.
	bottom := bottomPanel(t, []float64{1, 3}, 60)

	prop, err := Proportion(bottom, ProportionWindow)
	require.NoError(t, err)
	require.Len(t, prop, 2)
	assert.InDelta(t, 0.25, prop[0], 1e-12)
	assert.InDelta(t, 0.75, prop[1], 1e-12)
}

func TestProportion_UsesOnlyTrailingWindow(t *testing.T) {
	// La serie 0 solo vende fuera de la ventana reciente: su proporción es 0.
	dur := 60
	bottom := domain.Zeros(2, dur, 1)
	for step := 0; step < dur-28; step++ {
		bottom.Data[step] = 100
	}
	for step := 0; step < dur; step++ {
		bottom.Data[dur+step] = 2
	}

	prop, err := Proportion(bottom, 28)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, prop[0], 1e-12)
	assert.InDelta(t, 1.0, prop[1], 1e-12)
}

func TestProportion_ZeroGrandTotal(t *testing.T) {
	bottom := domain.Zeros(3, 40, 1)

	_, err := Proportion(bottom, 28)
	require.Error(t, err, "sin ventas recientes no hay reparto definido")
}

func TestProportion_SumsToOne(t *testing.T) {
	bottom := bottomPanel(t, []float64{0.5, 7, 2.25, 11, 3}, 50)

	prop, err := Proportion(bottom, 28)
	require.NoError(t, err)
	var sum float64
	for _, p := range prop {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestDisaggregatePoint_PreservesMass(t *testing.T) {
	// Repartir 100 unidades con proporciones [0.25, 0.75] → [25, 75].
	agg := []float64{100, 40, 0}
	prop := []float64{0.25, 0.75}

	out := DisaggregatePoint(agg, prop)
	require.Equal(t, []int{2, 3}, out.Shape)

	assert.InDelta(t, 25.0, out.Data[0], 1e-12)
	assert.InDelta(t, 75.0, out.Data[3], 1e-12)

	for step := range agg {
		var sum float64
		for i := range prop {
			sum += out.Data[i*len(agg)+step]
		}
		assert.InDelta(t, agg[step], sum, 1e-9, "masa conservada en cada paso")
	}
}

func TestDisaggregateSamples_PoissonKeepsMeanAndSpread(t *testing.T) {
	// Escalar un ensemble por proporciones pequeñas sin re-muestrear deja
	// fragmentos casi deterministas. La extracción Poisson recupera una
	// varianza del orden de la media, manteniendo la media de cada serie.
	numSamples, dur := 4000, 2
	samples := domain.Zeros(numSamples, dur)
	for i := range samples.Data {
		samples.Data[i] = 1000
	}
	prop := []float64{0.25, 0.75}

	out, err := DisaggregateSamples(samples, prop, rand.NewSource(11))
	require.NoError(t, err)
	require.Equal(t, []int{numSamples, 2, dur}, out.Shape)

	for i, p := range prop {
		rate := p * 1000
		var sum, sumSq float64
		for s := 0; s < numSamples; s++ {
			v := out.Data[(s*2+i)*dur]
			assert.Equal(t, v, float64(int64(v)), "realizaciones enteras")
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
			sumSq += v * v
		}
		mean := sum / float64(numSamples)
		variance := sumSq/float64(numSamples) - mean*mean

		assert.InDelta(t, rate, mean, rate*0.05, "media preservada")
		assert.InDelta(t, rate, variance, rate*0.20, "varianza Poisson ≈ tasa")
	}
}

func TestDisaggregateSamples_ZeroRate(t *testing.T) {
	samples := domain.Zeros(10, 3) // todo ceros
	out, err := DisaggregateSamples(samples, []float64{0.5, 0.5}, rand.NewSource(1))
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.Equal(t, 0.0, v)
	}
}

func TestDisaggregateSamples_Deterministic(t *testing.T) {
	samples := domain.Zeros(20, 4)
	for i := range samples.Data {
		samples.Data[i] = float64(10 + i%13)
	}
	prop := []float64{0.1, 0.9}

	a, err := DisaggregateSamples(samples, prop, rand.NewSource(42))
	require.NoError(t, err)
	b, err := DisaggregateSamples(samples, prop, rand.NewSource(42))
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data, "misma semilla, mismo ensemble")
}

func TestEnsembleMean(t *testing.T) {
	samples, err := domain.NewTensor([]int{3, 2}, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
	require.NoError(t, err)

	mean, err := EnsembleMean(samples)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mean[0], 1e-12)
	assert.InDelta(t, 20.0, mean[1], 1e-12)
}

func TestFlattenAggregate(t *testing.T) {
	ensemble := domain.Zeros(5, 1, 7, 1)
	for i := range ensemble.Data {
		ensemble.Data[i] = float64(i)
	}

	flat, err := FlattenAggregate(ensemble)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 7}, flat.Shape)
	assert.Equal(t, ensemble.Data, flat.Data)

	multi := domain.Zeros(5, 2, 7, 1)
	_, err = FlattenAggregate(multi)
	require.Error(t, err, "solo ensembles de una única serie agregada")
}

func TestQuantileSummary(t *testing.T) {
	// Ensemble constante: todos los cuantiles devuelven ese valor.
	numSamples := 50
	samples := domain.Zeros(numSamples, 1, 2)
	for i := range samples.Data {
		samples.Data[i] = 9.5
	}

	qs := []float64{0.005, 0.5, 0.995}
	out, err := QuantileSummary(samples, qs)
	require.NoError(t, err)
	require.Equal(t, []int{3, 1, 2}, out.Shape)
	for _, v := range out.Data {
		assert.InDelta(t, 9.5, v, 1e-12)
	}
}

func TestQuantileSummary_MonotonicAndBounded(t *testing.T) {
	numSamples := 200
	samples := domain.Zeros(numSamples, 2, 3)
	src := rand.New(rand.NewSource(7))
	for i := range samples.Data {
		samples.Data[i] = src.Float64() * 100
	}

	out, err := QuantileSummary(samples, domain.Quantiles)
	require.NoError(t, err)

	n, dur := 2, 3
	for i := 0; i < n; i++ {
		for step := 0; step < dur; step++ {
			prev := out.Data[(0*n+i)*dur+step]
			for q := 1; q < len(domain.Quantiles); q++ {
				cur := out.Data[(q*n+i)*dur+step]
				assert.GreaterOrEqual(t, cur, prev, "cuantiles no decrecientes")
				assert.GreaterOrEqual(t, cur, 0.0)
				assert.LessOrEqual(t, cur, 100.0)
				prev = cur
			}
		}
	}
}

func TestTopDownPipeline_ReaggregationRecoversTotals(t *testing.T) {
	// Desagregar un forecast puntual y re-agregarlo por el nivel total debe
	// devolver exactamente el agregado original.
	dur := 5
	bottom := bottomPanel(t, []float64{2, 6, 4, 8}, 40)

	prop, err := Proportion(bottom, 28)
	require.NoError(t, err)

	agg := []float64{120, 80, 200, 0, 44}
	point := DisaggregatePoint(agg, prop)

	// un único sample: re-agregación vía el panel jerárquico
	samples, err := domain.NewTensor([]int{1, 4, dur}, point.Data)
	require.NoError(t, err)

	hier := domain.Hierarchy{Levels: []domain.Level{
		{Name: "total", Groups: []int{0, 0, 0, 0}, Count: 1},
		{Name: "store", Groups: []int{0, 0, 1, 1}, Count: 2},
	}}
	reagg, err := domain.AggregateSamples(samples, hier.Levels...)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, dur}, reagg.Shape)

	for step := 0; step < dur; step++ {
		assert.InDelta(t, agg[step], reagg.Data[step], 1e-9, "nivel total")
	}
	// store 0 = series {0,1} → proporción 0.1+0.3 = 0.4 del total
	for step := 0; step < dur; step++ {
		assert.InDelta(t, 0.4*agg[step], reagg.Data[dur+step], 1e-9)
	}
}
