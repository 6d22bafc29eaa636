package kernel

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gravity.model/internal/config"
	"github.com/banshee-data/gravity.model/internal/geom"
	"github.com/banshee-data/gravity.model/internal/gravity"
	"github.com/banshee-data/gravity.model/internal/spectral"
)

// Builder derives the kernel cache entry for one geometry, computing it from
// the physical evaluator only when the store has no valid entry.
type Builder struct {
	geometry geom.Geometry
	store    Store
	eval     gravity.Evaluator

	workers    int
	standoff   float64
	refDensity float64
	obsHeight  float64
}

// NewBuilder wires a builder for the given geometry. store may be nil, in
// which case every call to Entry recomputes. tuning may be nil for defaults.
func NewBuilder(g geom.Geometry, store Store, eval gravity.Evaluator, tuning *config.Tuning) (*Builder, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, fmt.Errorf("nil evaluator")
	}
	if tuning == nil {
		tuning = config.DefaultTuning()
	}
	return &Builder{
		geometry:   g,
		store:      store,
		eval:       eval,
		workers:    tuning.GetKernelWorkers(),
		standoff:   tuning.GetStandoffMeters(),
		refDensity: tuning.GetReferenceDensity(),
		obsHeight:  tuning.GetObservationHeightMeters(),
	}, nil
}

// Entry returns the kernel cache entry for the builder's geometry, loading
// it from the store when present and otherwise generating and persisting it.
// A store read failure is surfaced as-is: only a genuine miss falls through
// to recomputation.
func (b *Builder) Entry(ctx context.Context) (*Entry, error) {
	key := b.geometry.CacheKey()

	if b.store != nil {
		e, err := b.store.Load(key, b.geometry)
		if err != nil {
			return nil, fmt.Errorf("kernel cache read for %s: %w", key, err)
		}
		if e != nil {
			log.Printf("[KernelCache] loaded entry %s from cache", key)
			return e, nil
		}
	}

	start := time.Now()
	log.Printf("[KernelCache] generating entry %s (%d layers, %d tiles each)",
		key, b.geometry.Nz, b.geometry.LayerCells())
	e, err := b.build(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[KernelCache] generated entry %s in %v", key, time.Since(start))

	if b.store != nil {
		if err := b.store.Save(key, e); err != nil {
			return nil, fmt.Errorf("kernel cache write for %s: %w", key, err)
		}
	}
	return e, nil
}

// build generates the full entry: one spectrum per depth layer, processed
// sequentially (layers are independent; tile evaluation inside each layer is
// where the parallelism pays off).
func (b *Builder) build(ctx context.Context) (*Entry, error) {
	g := b.geometry
	padRows, padCols := g.PaddedRows(), g.PaddedCols()

	plan, err := spectral.NewFFT2(padRows, padCols)
	if err != nil {
		return nil, err
	}
	buf := make([]complex128, padRows*padCols)

	e := &Entry{
		Key:    g.CacheKey(),
		Layers: g.Nz,
		Rows:   padRows,
		Cols:   padCols,
		Re:     make([][]float32, g.Nz),
		Im:     make([][]float32, g.Nz),
	}

	for layer := 0; layer < g.Nz; layer++ {
		k, err := b.layerKernel(ctx, layer)
		if err != nil {
			return nil, fmt.Errorf("layer %d kernel: %w", layer, err)
		}

		// Normalise to the unit density response so the recorded reference
		// density cancels out of the cached spectra.
		for i := range k {
			k[i] /= b.refDensity
		}

		if err := spectral.EmbedReal(buf, k, g.Ny, g.Nx, padCols); err != nil {
			return nil, err
		}
		if err := plan.Forward(buf); err != nil {
			return nil, err
		}

		re := make([]float32, len(buf))
		im := make([]float32, len(buf))
		for i, v := range buf {
			re[i] = float32(real(v))
			im[i] = float32(imag(v))
		}
		e.Re[layer], e.Im[layer] = re, im
	}

	return e, nil
}

// layerKernel evaluates the Ny×Nx spatial kernel of one depth layer: the
// field at the single reference observation point due to each unit tile of
// the layer, in tile (row-major) order. Tiles are independent, so they fan
// out over a bounded worker pool; results land at their tile index and the
// first evaluator failure aborts the whole layer.
func (b *Builder) layerKernel(ctx context.Context, layer int) ([]float64, error) {
	g := b.geometry
	prisms := g.LayerTiling(layer, b.standoff, b.refDensity)
	obs := g.ObservationOrigin(b.obsHeight)

	out := make([]float64, len(prisms))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.workers)

	for i := range prisms {
		// Cancellation is checked between tile dispatches so an aborted
		// generation stops promptly even with thousands of tiles queued.
		if err := ctx.Err(); err != nil {
			break
		}
		i := i
		grp.Go(func() error {
			v, err := b.eval.Gz(obs, prisms[i])
			if err != nil {
				return fmt.Errorf("tile %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
