// Package forward applies cached per-layer frequency-domain kernels to
// density volumes by the convolution theorem: zero-padded forward FFT,
// complex pointwise multiply, inverse FFT, quadrant extraction. Layers are
// independent; each layer's field depends only on its own density.
package forward

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gravity.model/internal/config"
	"github.com/banshee-data/gravity.model/internal/geom"
	"github.com/banshee-data/gravity.model/internal/kernel"
	"github.com/banshee-data/gravity.model/internal/spectral"
)

// ErrShapeMismatch is returned when a density volume's layer, row, or column
// counts disagree with the geometry the kernel cache entry was built for.
var ErrShapeMismatch = errors.New("forward: volume shape does not match kernel geometry")

// Convolver applies one kernel cache entry to density volumes. It is safe
// for concurrent use; transform plans are pooled per worker.
type Convolver struct {
	geometry geom.Geometry
	workers  int

	// spectra holds the entry's per-layer kernels expanded to complex128,
	// ready for pointwise multiplication.
	spectra [][]complex128

	plans sync.Pool
}

// NewConvolver validates the entry against the geometry and prepares the
// per-layer spectra. tuning may be nil for defaults.
func NewConvolver(g geom.Geometry, entry *kernel.Entry, tuning *config.Tuning) (*Convolver, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := entry.Validate(g); err != nil {
		return nil, err
	}
	if tuning == nil {
		tuning = config.DefaultTuning()
	}

	spectra := make([][]complex128, entry.Layers)
	for l := 0; l < entry.Layers; l++ {
		s := make([]complex128, entry.Rows*entry.Cols)
		if err := entry.LayerSpectrum(l, s); err != nil {
			return nil, err
		}
		spectra[l] = s
	}

	padRows, padCols := g.PaddedRows(), g.PaddedCols()
	c := &Convolver{
		geometry: g,
		workers:  tuning.GetForwardWorkers(),
		spectra:  spectra,
	}
	c.plans.New = func() any {
		// Sizes were validated above, so plan construction cannot fail.
		plan, _ := spectral.NewFFT2(padRows, padCols)
		return plan
	}
	return c, nil
}

// Apply computes the forward-modelled field of a density volume. The output
// has the same shape as the input and is freshly allocated; the input is
// never mutated. Batch elements and depth layers are processed as
// independent tasks over a bounded worker pool.
func (c *Convolver) Apply(ctx context.Context, density *Volume) (*Volume, error) {
	if err := density.Validate(); err != nil {
		return nil, err
	}
	g := c.geometry
	if density.Layers != g.Nz || density.Rows != g.Ny || density.Cols != g.Nx {
		return nil, fmt.Errorf("%w: got (%d, %d, %d, %d), want layers=%d rows=%d cols=%d",
			ErrShapeMismatch, density.Batch, density.Layers, density.Rows, density.Cols,
			g.Nz, g.Ny, g.Nx)
	}

	out, err := NewVolume(density.Batch, density.Layers, density.Rows, density.Cols)
	if err != nil {
		return nil, err
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(c.workers)

	for b := 0; b < density.Batch; b++ {
		for l := 0; l < density.Layers; l++ {
			if err := ctx.Err(); err != nil {
				break
			}
			b, l := b, l
			grp.Go(func() error {
				return c.convolveLayer(density.LayerSlice(b, l), out.LayerSlice(b, l), l)
			})
		}
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// convolveLayer runs one layer's zero-padded FFT convolution: the density
// slice goes into the real channel of the top-left quadrant, everything else
// stays zero, and after the inverse transform the top-left real quadrant is
// the wraparound-free field contribution.
func (c *Convolver) convolveLayer(density, field []float64, layer int) error {
	g := c.geometry
	padRows, padCols := g.PaddedRows(), g.PaddedCols()

	plan := c.plans.Get().(*spectral.FFT2)
	defer c.plans.Put(plan)

	buf := make([]complex128, padRows*padCols)
	if err := spectral.EmbedReal(buf, density, g.Ny, g.Nx, padCols); err != nil {
		return err
	}
	if err := plan.Forward(buf); err != nil {
		return err
	}
	if err := spectral.MulElements(buf, buf, c.spectra[layer]); err != nil {
		return err
	}
	if err := plan.Inverse(buf); err != nil {
		return err
	}

	for r := 0; r < g.Ny; r++ {
		for col := 0; col < g.Nx; col++ {
			field[r*g.Nx+col] = real(buf[r*padCols+col])
		}
	}
	return nil
}
