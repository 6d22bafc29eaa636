// Package kernel produces and caches the frequency-domain interaction
// kernels of the layer convolution scheme: one complex 2-D spectrum per
// depth layer, each the discrete Fourier transform of the zero-padded
// (circulant-embedded) Toeplitz kernel between that layer and its
// observation plane.
package kernel

import (
	"fmt"

	"github.com/banshee-data/gravity.model/internal/geom"
)

// Entry is one immutable kernel cache entry: per depth layer, the
// unnormalized 2-D DFT of the zero-padded unit-response kernel, stored as
// separate real and imaginary float32 channels for storage economy. Rows and
// Cols are the padded dimensions, always exactly double the geometry's row
// and column counts.
type Entry struct {
	Key    string
	Layers int
	Rows   int
	Cols   int
	Re     [][]float32
	Im     [][]float32
}

// Validate checks the entry against the geometry it is expected to serve.
// A loaded entry that fails validation must be treated as corrupt, never as
// a cache miss.
func (e *Entry) Validate(g geom.Geometry) error {
	if e == nil {
		return fmt.Errorf("nil kernel entry")
	}
	if e.Layers != g.Nz || e.Rows != g.PaddedRows() || e.Cols != g.PaddedCols() {
		return fmt.Errorf("kernel entry shape %dx%dx%d does not match geometry %dx%dx%d",
			e.Layers, e.Rows, e.Cols, g.Nz, g.PaddedRows(), g.PaddedCols())
	}
	if len(e.Re) != e.Layers || len(e.Im) != e.Layers {
		return fmt.Errorf("kernel entry has %d/%d layer channels, want %d", len(e.Re), len(e.Im), e.Layers)
	}
	for i := 0; i < e.Layers; i++ {
		if len(e.Re[i]) != e.Rows*e.Cols || len(e.Im[i]) != e.Rows*e.Cols {
			return fmt.Errorf("kernel entry layer %d has %d/%d bins, want %d",
				i, len(e.Re[i]), len(e.Im[i]), e.Rows*e.Cols)
		}
	}
	return nil
}

// LayerSpectrum expands layer i's two-channel spectrum into dst as
// complex128 values. dst must have length Rows·Cols.
func (e *Entry) LayerSpectrum(layer int, dst []complex128) error {
	if layer < 0 || layer >= e.Layers {
		return fmt.Errorf("layer %d out of range [0, %d)", layer, e.Layers)
	}
	if len(dst) != e.Rows*e.Cols {
		return fmt.Errorf("spectrum buffer length %d, want %d", len(dst), e.Rows*e.Cols)
	}
	re, im := e.Re[layer], e.Im[layer]
	for i := range dst {
		dst[i] = complex(float64(re[i]), float64(im[i]))
	}
	return nil
}

// Store is the persistent keyed cache of kernel entries.
//
// Load returns (nil, nil) on a cache miss. Any other failure — unreadable
// storage, a corrupt blob, an entry whose shape disagrees with the geometry —
// must be reported as an error so it cannot masquerade as a miss.
// Save must publish atomically: a concurrent reader never observes a
// partially written entry.
type Store interface {
	Load(key string, g geom.Geometry) (*Entry, error)
	Save(key string, e *Entry) error
}
