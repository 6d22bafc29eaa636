// Package spectral provides the 2-D discrete Fourier transforms and complex
// element-wise products used by the layer convolution scheme. Transforms are
// planned once per size and reused, with the forward transform unnormalized
// and the inverse carrying the 1/N factor, matching gonum's convention.
package spectral

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Sentinel errors returned by transform operations.
var (
	// ErrInvalidSize is returned when a transform is planned with a
	// non-positive dimension.
	ErrInvalidSize = errors.New("spectral: invalid transform size")

	// ErrLengthMismatch is returned when a buffer's length does not match
	// the planned rows·cols size.
	ErrLengthMismatch = errors.New("spectral: buffer length mismatch")
)

// FFT2 is a planned 2-D complex DFT over row-major rows×cols buffers,
// computed by row-column decomposition. An FFT2 owns scratch space and is
// not safe for concurrent use; callers that parallelise pool instances.
type FFT2 struct {
	rows, cols int
	rowPlan    *fourier.CmplxFFT // length cols, applied to each row
	colPlan    *fourier.CmplxFFT // length rows, applied to each column
	rowScratch []complex128
	colIn      []complex128
	colOut     []complex128
}

// NewFFT2 plans a 2-D transform for rows×cols buffers.
func NewFFT2(rows, cols int) (*FFT2, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}
	return &FFT2{
		rows:       rows,
		cols:       cols,
		rowPlan:    fourier.NewCmplxFFT(cols),
		colPlan:    fourier.NewCmplxFFT(rows),
		rowScratch: make([]complex128, cols),
		colIn:      make([]complex128, rows),
		colOut:     make([]complex128, rows),
	}, nil
}

// Rows returns the planned row count.
func (f *FFT2) Rows() int { return f.rows }

// Cols returns the planned column count.
func (f *FFT2) Cols() int { return f.cols }

// Len returns the planned buffer length rows·cols.
func (f *FFT2) Len() int { return f.rows * f.cols }

// Forward computes the unnormalized forward 2-D DFT of data in place.
func (f *FFT2) Forward(data []complex128) error {
	if len(data) != f.Len() {
		return fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(data), f.Len())
	}
	for r := 0; r < f.rows; r++ {
		row := data[r*f.cols : (r+1)*f.cols]
		f.rowPlan.Coefficients(f.rowScratch, row)
		copy(row, f.rowScratch)
	}
	for c := 0; c < f.cols; c++ {
		for r := 0; r < f.rows; r++ {
			f.colIn[r] = data[r*f.cols+c]
		}
		f.colPlan.Coefficients(f.colOut, f.colIn)
		for r := 0; r < f.rows; r++ {
			data[r*f.cols+c] = f.colOut[r]
		}
	}
	return nil
}

// Inverse computes the inverse 2-D DFT of data in place, including the
// 1/(rows·cols) normalization, so Inverse(Forward(x)) == x.
func (f *FFT2) Inverse(data []complex128) error {
	if len(data) != f.Len() {
		return fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(data), f.Len())
	}
	for r := 0; r < f.rows; r++ {
		row := data[r*f.cols : (r+1)*f.cols]
		f.rowPlan.Sequence(f.rowScratch, row)
		copy(row, f.rowScratch)
	}
	scale := complex(1/float64(f.Len()), 0)
	for c := 0; c < f.cols; c++ {
		for r := 0; r < f.rows; r++ {
			f.colIn[r] = data[r*f.cols+c]
		}
		f.colPlan.Sequence(f.colOut, f.colIn)
		for r := 0; r < f.rows; r++ {
			data[r*f.cols+c] = f.colOut[r] * scale
		}
	}
	return nil
}

// MulElements sets dst[i] = a[i] * k[i] for every spatial frequency bin.
// dst may alias a. The slices must have equal length.
func MulElements(dst, a, k []complex128) error {
	if len(dst) != len(a) || len(a) != len(k) {
		return fmt.Errorf("%w: %d, %d, %d", ErrLengthMismatch, len(dst), len(a), len(k))
	}
	for i := range dst {
		dst[i] = a[i] * k[i]
	}
	return nil
}

// EmbedReal zeroes dst and writes the srcRows×srcCols row-major real matrix
// src into the real channel of dst's top-left quadrant. dst is row-major
// with dstCols columns; it must be large enough to hold the source in its
// top-left corner.
func EmbedReal(dst []complex128, src []float64, srcRows, srcCols, dstCols int) error {
	if len(src) != srcRows*srcCols {
		return fmt.Errorf("%w: source %d, want %d", ErrLengthMismatch, len(src), srcRows*srcCols)
	}
	if dstCols < srcCols || len(dst) < srcRows*dstCols {
		return fmt.Errorf("%w: destination %d too small for %dx%d source with %d columns",
			ErrLengthMismatch, len(dst), srcRows, srcCols, dstCols)
	}
	for i := range dst {
		dst[i] = 0
	}
	for r := 0; r < srcRows; r++ {
		for c := 0; c < srcCols; c++ {
			dst[r*dstCols+c] = complex(src[r*srcCols+c], 0)
		}
	}
	return nil
}
