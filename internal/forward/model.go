package forward

import (
	"context"
	"fmt"

	"github.com/banshee-data/gravity.model/internal/config"
	"github.com/banshee-data/gravity.model/internal/geom"
	"github.com/banshee-data/gravity.model/internal/gravity"
	"github.com/banshee-data/gravity.model/internal/kernel"
	"github.com/banshee-data/gravity.model/internal/kernelstore"
)

// Model is the module entry point: a geometry, its kernel cache entry, and
// the convolver that applies it. The kernel is loaded or generated once at
// construction; Forward is then a pure function of the density input.
type Model struct {
	geometry geom.Geometry
	store    *kernelstore.DB
	conv     *Convolver
}

// NewModel builds a forward model for (dz, dy, dx) cell sizes and
// (nz, ny, nx) cell counts, persisting kernels under cacheDir. An empty
// cacheDir disables persistence and always regenerates. tuning may be nil
// for defaults. Kernel generation honours ctx cancellation.
func NewModel(ctx context.Context, cellSize [3]float64, cellCount [3]int, cacheDir string, tuning *config.Tuning) (*Model, error) {
	g, err := geom.New(cellSize, cellCount)
	if err != nil {
		return nil, err
	}
	if tuning != nil {
		if err := tuning.Validate(); err != nil {
			return nil, err
		}
	}

	var store *kernelstore.DB
	var kstore kernel.Store
	if cacheDir != "" {
		store, err = kernelstore.Open(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open kernel cache: %w", err)
		}
		kstore = store
	}

	builder, err := kernel.NewBuilder(g, kstore, gravity.PrismEvaluator{}, tuning)
	if err != nil {
		closeQuietly(store)
		return nil, err
	}
	entry, err := builder.Entry(ctx)
	if err != nil {
		closeQuietly(store)
		return nil, err
	}

	conv, err := NewConvolver(g, entry, tuning)
	if err != nil {
		closeQuietly(store)
		return nil, err
	}

	return &Model{geometry: g, store: store, conv: conv}, nil
}

// Geometry returns the model's discretisation geometry.
func (m *Model) Geometry() geom.Geometry { return m.geometry }

// Forward computes the field volume of a density volume of matching shape.
func (m *Model) Forward(ctx context.Context, density *Volume) (*Volume, error) {
	return m.conv.Apply(ctx, density)
}

// Close releases the kernel cache database, if any.
func (m *Model) Close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func closeQuietly(store *kernelstore.DB) {
	if store != nil {
		store.Close()
	}
}
