package forward

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gravity.model/internal/config"
	"github.com/banshee-data/gravity.model/internal/geom"
	"github.com/banshee-data/gravity.model/internal/kernel"
)

// offsetEvaluator yields a deterministic kernel value per tile so the
// convolver's output can be checked against the exact spatial kernel.
type offsetEvaluator struct{}

func (offsetEvaluator) Gz(p geom.Point, prism geom.Prism) (float64, error) {
	// Distinct, smoothly decaying values per tile offset.
	cx := (prism.X1 + prism.X2) / 2
	cy := (prism.Y1 + prism.Y2) / 2
	dx := cx - p.X
	dy := cy - p.Y
	return 1000.0 / (1 + dx*dx + dy*dy), nil
}

func testGeometry() geom.Geometry {
	return geom.Geometry{Dz: 1, Dy: 1, Dx: 1, Nz: 3, Ny: 4, Nx: 5}
}

// buildEntry generates a kernel entry with the stub evaluator.
func buildEntry(t *testing.T, g geom.Geometry) *kernel.Entry {
	t.Helper()
	b, err := kernel.NewBuilder(g, nil, offsetEvaluator{}, nil)
	require.NoError(t, err)
	e, err := b.Entry(context.Background())
	require.NoError(t, err)
	return e
}

// spatialKernel reproduces the unit-response kernel matrix the stub
// evaluator generates for one layer, in row-major (Ny, Nx) order.
func spatialKernel(g geom.Geometry, layer int) []float64 {
	tuning := config.DefaultTuning()
	prisms := g.LayerTiling(layer, tuning.GetStandoffMeters(), tuning.GetReferenceDensity())
	obs := g.ObservationOrigin(tuning.GetObservationHeightMeters())
	k := make([]float64, len(prisms))
	for i, p := range prisms {
		cx := (p.X1 + p.X2) / 2
		cy := (p.Y1 + p.Y2) / 2
		dx := cx - obs.X
		dy := cy - obs.Y
		k[i] = 1000.0 / (1 + dx*dx + dy*dy) / tuning.GetReferenceDensity()
	}
	return k
}

func newTestConvolver(t *testing.T, g geom.Geometry) *Convolver {
	t.Helper()
	c, err := NewConvolver(g, buildEntry(t, g), nil)
	require.NoError(t, err)
	return c
}

func fillVolume(v *Volume) {
	for i := range v.Data {
		v.Data[i] = math.Sin(float64(i)*0.37) + 0.2*float64(i%7)
	}
}

func TestApplyShapeInvariance(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)

	density, err := NewVolume(2, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	fillVolume(density)

	field, err := c.Apply(context.Background(), density)
	require.NoError(t, err)
	assert.True(t, field.SameShape(density), "field shape %v, want %v", field, density)
}

func TestApplyZeroInputZeroOutput(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)

	density, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)

	field, err := c.Apply(context.Background(), density)
	require.NoError(t, err)
	for i, v := range field.Data {
		if v != 0 {
			t.Fatalf("zero density produced nonzero field %g at %d", v, i)
		}
	}
}

func TestApplyLinearity(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)
	ctx := context.Background()

	x, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	y, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	fillVolume(x)
	for i := range y.Data {
		y.Data[i] = math.Cos(float64(i) * 0.61)
	}

	const alpha, beta = 2.5, -1.25
	combined, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	for i := range combined.Data {
		combined.Data[i] = alpha*x.Data[i] + beta*y.Data[i]
	}

	fx, err := c.Apply(ctx, x)
	require.NoError(t, err)
	fy, err := c.Apply(ctx, y)
	require.NoError(t, err)
	fc, err := c.Apply(ctx, combined)
	require.NoError(t, err)

	for i := range fc.Data {
		want := alpha*fx.Data[i] + beta*fy.Data[i]
		assert.InDelta(t, want, fc.Data[i], 1e-9*(1+math.Abs(want)), "bin %d", i)
	}
}

// The fundamental correctness property of the circulant embedding: a unit
// impulse at (r0, c0) of layer l reproduces that layer's kernel matrix
// shifted so its peak sits at (r0, c0), with nothing upstream of the
// impulse.
func TestApplyImpulseReproducesKernel(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)

	const layer, r0, c0 = 1, 1, 2
	density, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	density.Set(0, layer, r0, c0, 1)

	field, err := c.Apply(context.Background(), density)
	require.NoError(t, err)

	k := spatialKernel(g, layer)
	var maxAbs float64
	for _, v := range k {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	tol := 1e-4 * maxAbs

	for r := 0; r < g.Ny; r++ {
		for col := 0; col < g.Nx; col++ {
			got := field.At(0, layer, r, col)
			var want float64
			if r >= r0 && col >= c0 {
				want = k[(r-r0)*g.Nx+(col-c0)]
			}
			if math.Abs(got-want) > tol {
				t.Errorf("field[%d][%d] = %g, want %g", r, col, got, want)
			}
		}
	}
}

// An impulse in the far corner must not wrap around to the opposite edges:
// the padding factor of 2 guarantees linear, not circular, convolution.
func TestApplyNoWraparound(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)

	density, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	density.Set(0, 0, g.Ny-1, g.Nx-1, 1)

	field, err := c.Apply(context.Background(), density)
	require.NoError(t, err)

	k := spatialKernel(g, 0)
	tol := 1e-4 * math.Abs(k[0])

	for r := 0; r < g.Ny; r++ {
		for col := 0; col < g.Nx; col++ {
			got := field.At(0, 0, r, col)
			if r == g.Ny-1 && col == g.Nx-1 {
				assert.InDelta(t, k[0], got, tol, "corner response")
				continue
			}
			if math.Abs(got) > tol {
				t.Errorf("wraparound contamination at [%d][%d]: %g", r, col, got)
			}
		}
	}
}

func TestApplyLayerIndependence(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)
	ctx := context.Background()

	base, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	fillVolume(base)

	modified := &Volume{Batch: 1, Layers: g.Nz, Rows: g.Ny, Cols: g.Nx, Data: append([]float64(nil), base.Data...)}
	for i := range modified.LayerSlice(0, 1) {
		modified.LayerSlice(0, 1)[i] += 3.5
	}

	fBase, err := c.Apply(ctx, base)
	require.NoError(t, err)
	fMod, err := c.Apply(ctx, modified)
	require.NoError(t, err)

	for l := 0; l < g.Nz; l++ {
		baseLayer := fBase.LayerSlice(0, l)
		modLayer := fMod.LayerSlice(0, l)
		if l == 1 {
			assert.NotEqual(t, baseLayer, modLayer, "modified layer must change")
			continue
		}
		assert.Equal(t, baseLayer, modLayer, "layer %d changed by edit to layer 1", l)
	}
}

func TestApplyBatchElementsIndependent(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)
	ctx := context.Background()

	single, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	fillVolume(single)

	batched, err := NewVolume(3, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	for b := 0; b < 3; b++ {
		copy(batched.Data[b*len(single.Data):(b+1)*len(single.Data)], single.Data)
	}

	fSingle, err := c.Apply(ctx, single)
	require.NoError(t, err)
	fBatch, err := c.Apply(ctx, batched)
	require.NoError(t, err)

	for b := 0; b < 3; b++ {
		assert.Equal(t, fSingle.Data, fBatch.Data[b*len(single.Data):(b+1)*len(single.Data)],
			"batch element %d differs from single run", b)
	}
}

func TestApplyShapeMismatch(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)
	ctx := context.Background()

	bad := [][4]int{
		{1, g.Nz + 1, g.Ny, g.Nx},
		{1, g.Nz, g.Ny - 1, g.Nx},
		{1, g.Nz, g.Ny, g.Nx + 2},
	}
	for _, dims := range bad {
		v, err := NewVolume(dims[0], dims[1], dims[2], dims[3])
		require.NoError(t, err)
		_, err = c.Apply(ctx, v)
		assert.ErrorIs(t, err, ErrShapeMismatch, "shape %v", dims)
	}

	_, err := c.Apply(ctx, nil)
	assert.Error(t, err)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)

	density, err := NewVolume(2, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)
	fillVolume(density)
	snapshot := append([]float64(nil), density.Data...)

	_, err = c.Apply(context.Background(), density)
	require.NoError(t, err)
	assert.Equal(t, snapshot, density.Data, "input density was mutated")
}

func TestNewConvolverRejectsMismatchedEntry(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	entry := buildEntry(t, g)

	other := g
	other.Ny = 8
	_, err := NewConvolver(other, entry, nil)
	assert.Error(t, err)
}

func TestApplyCancelledContext(t *testing.T) {
	t.Parallel()
	g := testGeometry()
	c := newTestConvolver(t, g)

	density, err := NewVolume(1, g.Nz, g.Ny, g.Nx)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Apply(ctx, density)
	assert.Error(t, err)
}
