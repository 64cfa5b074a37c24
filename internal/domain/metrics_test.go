package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ensembleFrom repite truth en cada sample: un ensemble puntual perfecto.
func ensembleFrom(truth *Tensor, numSamples int) *Tensor {
	shape := append([]int{numSamples}, truth.Shape...)
	out := Zeros(shape...)
	for s := 0; s < numSamples; s++ {
		copy(out.Data[s*truth.Size():(s+1)*truth.Size()], truth.Data)
	}
	return out
}

func TestMetrics_PerfectForecast_AllZero(t *testing.T) {
	// Escenario A: dos series, ensemble idéntico a la verdad → error 0 en todas.
	truth, err := NewTensor([]int{2, 1, 1}, []float64{5, 6})
	require.NoError(t, err)
	pred := ensembleFrom(truth, 50)

	for name, metric := range DefaultMetrics() {
		value, err := metric(pred, truth)
		require.NoError(t, err, name)
		require.Equal(t, []int{2}, value.Shape, name)
		for b, v := range value.Data {
			assert.InDelta(t, 0.0, v, 1e-12, "%s series %d", name, b)
		}
	}
}

func TestMetrics_ShapeMismatch(t *testing.T) {
	truth, _ := NewTensor([]int{2, 3, 1}, make([]float64, 6))
	short, _ := NewTensor([]int{2, 2, 1}, make([]float64, 4))
	pred := ensembleFrom(truth, 10)

	for name, metric := range DefaultMetrics() {
		_, err := metric(pred, short)
		assert.Error(t, err, "%s debe rechazar duration distinta", name)
	}

	// sin eje de samples
	_, err := MAE(truth, truth)
	assert.Error(t, err)
}

func TestRMSE_EqualsMAE_ForPointEnsemble(t *testing.T) {
	// Con todos los samples idénticos, RMSE de la media y MAE de la mediana
	// coinciden con el error absoluto.
	truth, _ := NewTensor([]int{1, 1}, []float64{3})
	pred, _ := NewTensor([]int{4, 1, 1}, []float64{5, 5, 5, 5})

	mae, err := MAE(pred, truth)
	require.NoError(t, err)
	rmse, err := RMSE(pred, truth)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, mae.Data[0], 1e-12)
	assert.InDelta(t, 2.0, rmse.Data[0], 1e-12)
}

func TestCRPS_PointEnsemble_IsAbsoluteError(t *testing.T) {
	// Sin dispersión el CRPS se reduce a |x - y|.
	truth, _ := NewTensor([]int{1, 1}, []float64{10})
	pred, _ := NewTensor([]int{8, 1, 1}, []float64{7, 7, 7, 7, 7, 7, 7, 7})

	crps, err := CRPS(pred, truth)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, crps.Data[0], 1e-12)
}

func TestCRPS_RewardsSharpness(t *testing.T) {
	// Dos ensembles con la misma media: el más disperso tiene peor CRPS
	// cuando la verdad coincide con la media.
	truth, _ := NewTensor([]int{1, 1}, []float64{0})
	tight, _ := NewTensor([]int{4, 1, 1}, []float64{-1, -1, 1, 1})
	wide, _ := NewTensor([]int{4, 1, 1}, []float64{-5, -5, 5, 5})

	tightCRPS, err := CRPS(tight, truth)
	require.NoError(t, err)
	wideCRPS, err := CRPS(wide, truth)
	require.NoError(t, err)
	assert.Less(t, tightCRPS.Data[0], wideCRPS.Data[0])
}

func TestPinball_MedianPointEnsemble_HalfAbsError(t *testing.T) {
	// Pinball en q=0.5 con ensemble puntual = la mitad del error absoluto.
	truth, _ := NewTensor([]int{1, 1}, []float64{4})
	pred, _ := NewTensor([]int{5, 1, 1}, []float64{10, 10, 10, 10, 10})

	pl, err := PinballLoss(pred, truth, []float64{0.5})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, pl.Data[0], 1e-12)

	// y simétrico con el error al otro lado
	below, _ := NewTensor([]int{5, 1, 1}, []float64{0, 0, 0, 0, 0})
	pl2, err := PinballLoss(below, truth, []float64{0.5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pl2.Data[0], 1e-12)
}

func TestPinball_AsymmetricWeighting(t *testing.T) {
	// En q=0.9 subestimar (error ≤ 0) pesa -q: castiga más que sobreestimar.
	truth, _ := NewTensor([]int{1, 1}, []float64{10})
	under, _ := NewTensor([]int{3, 1, 1}, []float64{8, 8, 8})
	over, _ := NewTensor([]int{3, 1, 1}, []float64{12, 12, 12})

	plUnder, err := PinballLoss(under, truth, []float64{0.9})
	require.NoError(t, err)
	plOver, err := PinballLoss(over, truth, []float64{0.9})
	require.NoError(t, err)

	assert.InDelta(t, 0.9*2, plUnder.Data[0], 1e-12)
	assert.InDelta(t, 0.1*2, plOver.Data[0], 1e-12)
}

func TestQuantiles_NineFixedLevels(t *testing.T) {
	require.Len(t, Quantiles, 9)
	assert.Equal(t, 0.005, Quantiles[0])
	assert.Equal(t, 0.5, Quantiles[4])
	assert.Equal(t, 0.995, Quantiles[8])
	// complementarios dos a dos alrededor de la mediana
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, Quantiles[i]+Quantiles[8-i], 1e-12)
	}
}

func TestMetrics_MultiBatchDims(t *testing.T) {
	// Ejes batch anidados [2, 3]: el resultado conserva el shape batch.
	truth := Zeros(2, 3, 4, 1)
	for i := range truth.Data {
		truth.Data[i] = float64(i)
	}
	pred := ensembleFrom(truth, 7)
	for s := 0; s < 7; s++ {
		for i := 0; i < truth.Size(); i++ {
			pred.Data[s*truth.Size()+i] += 1 // error constante de 1
		}
	}

	mae, err := MAE(pred, truth)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, mae.Shape)
	for _, v := range mae.Data {
		assert.InDelta(t, 1.0, v, 1e-12)
	}

	rmse, err := RMSE(pred, truth)
	require.NoError(t, err)
	for _, v := range rmse.Data {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
}

func TestMetrics_NaNTruthPropagates(t *testing.T) {
	truth, _ := NewTensor([]int{1, 1}, []float64{math.NaN()})
	pred, _ := NewTensor([]int{2, 1, 1}, []float64{1, 2})

	mae, err := MAE(pred, truth)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(mae.Data[0]))
}
