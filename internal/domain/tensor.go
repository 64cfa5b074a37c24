package domain

// tensor.go — abstracción explícita de array multidimensional.
//
// Reemplaza el broadcasting implícito típico del código numérico por shapes
// explícitos: cada reducción declara su eje y cualquier incompatibilidad de
// shape es un error, nunca una coerción silenciosa.
//
// Convenciones de shape:
//   - tensor de series:    [...batch, duration, channels]
//   - ensemble de samples: [num_samples, ...batch, duration, channels]

import "fmt"

// Tensor es un array denso row-major de float64.
// Un shape vacío representa un escalar (un solo elemento).
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor construye un tensor validando que len(data) == prod(shape).
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	n := prod(shape)
	if len(data) != n {
		return nil, fmt.Errorf("domain.NewTensor: data length %d does not match shape %v (want %d)", len(data), shape, n)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Zeros crea un tensor de ceros con el shape dado.
func Zeros(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, prod(shape))}
}

// Size devuelve el número total de elementos.
func (t *Tensor) Size() int { return len(t.Data) }

// Duration devuelve la dimensión temporal (penúltimo eje).
func (t *Tensor) Duration() int { return t.Shape[len(t.Shape)-2] }

// Channels devuelve la dimensión de canales (último eje).
func (t *Tensor) Channels() int { return t.Shape[len(t.Shape)-1] }

// BatchShape devuelve los ejes batch (todo menos duration y channels).
func (t *Tensor) BatchShape() []int { return t.Shape[:len(t.Shape)-2] }

// BatchSize devuelve el producto de los ejes batch.
func (t *Tensor) BatchSize() int { return prod(t.BatchShape()) }

// Clone devuelve una copia profunda del tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return &Tensor{Shape: append([]int(nil), t.Shape...), Data: data}
}

// SameShape reporta si ambos tensores tienen shape idéntico.
func (t *Tensor) SameShape(o *Tensor) bool {
	return shapeEq(t.Shape, o.Shape)
}

// SliceTime copia el rango temporal [lo, hi) manteniendo batch y channels.
func (t *Tensor) SliceTime(lo, hi int) (*Tensor, error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("domain.SliceTime: tensor has no time axis (shape %v)", t.Shape)
	}
	dur := t.Duration()
	if lo < 0 || hi > dur || lo >= hi {
		return nil, fmt.Errorf("domain.SliceTime: invalid range [%d, %d) for duration %d", lo, hi, dur)
	}
	batch := t.BatchSize()
	ch := t.Channels()
	span := hi - lo
	out := make([]float64, batch*span*ch)
	for b := 0; b < batch; b++ {
		copy(out[b*span*ch:(b+1)*span*ch], t.Data[(b*dur+lo)*ch:(b*dur+hi)*ch])
	}
	shape := append(append([]int(nil), t.BatchShape()...), span, ch)
	return &Tensor{Shape: shape, Data: out}, nil
}

// shapeEq compara dos shapes elemento a elemento.
func shapeEq(a, b []int) bool {
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

// prod devuelve el producto de las dimensiones (1 para shape vacío).
func prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
