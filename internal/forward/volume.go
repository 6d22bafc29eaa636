package forward

import "fmt"

// Volume is a 4-D row-major array with axes (batch, depth layer, row,
// column). It carries either a density model (kg/m³ contrast per cell) or a
// computed field (mGal per observation point). Fields are exported so
// volumes gob-encode for file interchange.
type Volume struct {
	Batch  int
	Layers int
	Rows   int
	Cols   int
	Data   []float64
}

// NewVolume allocates a zeroed volume of the given shape.
func NewVolume(batch, layers, rows, cols int) (*Volume, error) {
	if batch < 1 || layers < 1 || rows < 1 || cols < 1 {
		return nil, fmt.Errorf("volume dimensions must be positive, got (%d, %d, %d, %d)",
			batch, layers, rows, cols)
	}
	return &Volume{
		Batch:  batch,
		Layers: layers,
		Rows:   rows,
		Cols:   cols,
		Data:   make([]float64, batch*layers*rows*cols),
	}, nil
}

// Validate checks internal consistency of the shape and backing slice.
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("nil volume")
	}
	if v.Batch < 1 || v.Layers < 1 || v.Rows < 1 || v.Cols < 1 {
		return fmt.Errorf("volume dimensions must be positive, got (%d, %d, %d, %d)",
			v.Batch, v.Layers, v.Rows, v.Cols)
	}
	if want := v.Batch * v.Layers * v.Rows * v.Cols; len(v.Data) != want {
		return fmt.Errorf("volume data length %d does not match shape (%d, %d, %d, %d)",
			len(v.Data), v.Batch, v.Layers, v.Rows, v.Cols)
	}
	return nil
}

// SameShape reports whether two volumes have identical dimensions.
func (v *Volume) SameShape(o *Volume) bool {
	return v != nil && o != nil &&
		v.Batch == o.Batch && v.Layers == o.Layers &&
		v.Rows == o.Rows && v.Cols == o.Cols
}

func (v *Volume) index(b, l, r, c int) int {
	return ((b*v.Layers+l)*v.Rows+r)*v.Cols + c
}

// At returns the value at (batch, layer, row, col).
func (v *Volume) At(b, l, r, c int) float64 {
	return v.Data[v.index(b, l, r, c)]
}

// Set writes the value at (batch, layer, row, col).
func (v *Volume) Set(b, l, r, c int, value float64) {
	v.Data[v.index(b, l, r, c)] = value
}

// LayerSlice returns the Rows·Cols slice backing one (batch, layer) plane.
// The slice aliases the volume's data.
func (v *Volume) LayerSlice(b, l int) []float64 {
	start := v.index(b, l, 0, 0)
	return v.Data[start : start+v.Rows*v.Cols]
}
