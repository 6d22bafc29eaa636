// Package geom describes the discretisation geometry of a layered density
// model: the prism cells the model volume is tiled into and the regular
// observation grids fields are evaluated on.
//
// Coordinate convention follows classical gravimetry: x and y span the
// horizontal extent centred on the origin, z is positive downward, so an
// observation plane above ground sits at a small negative z.
package geom

import "fmt"

// Geometry describes a layered discretisation: cell edge lengths in metres
// and cell counts along each axis. The z axis indexes depth layers; y indexes
// rows and x indexes columns of each horizontal slice.
//
// Geometry is an immutable value type. A Geometry uniquely determines a
// kernel cache entry via CacheKey.
type Geometry struct {
	Dz float64 // cell height, metres
	Dy float64 // cell extent along y (rows), metres
	Dx float64 // cell extent along x (columns), metres
	Nz int     // number of depth layers
	Ny int     // number of rows per layer
	Nx int     // number of columns per layer
}

// New builds a Geometry from (dz, dy, dx) cell sizes and (nz, ny, nx) cell
// counts, validating both.
func New(cellSize [3]float64, cellCount [3]int) (Geometry, error) {
	g := Geometry{
		Dz: cellSize[0], Dy: cellSize[1], Dx: cellSize[2],
		Nz: cellCount[0], Ny: cellCount[1], Nx: cellCount[2],
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks the geometry invariants: positive cell counts and positive
// cell sizes.
func (g Geometry) Validate() error {
	if g.Nz <= 0 || g.Ny <= 0 || g.Nx <= 0 {
		return fmt.Errorf("cell counts must be positive, got %dx%dx%d", g.Nz, g.Ny, g.Nx)
	}
	if g.Dz <= 0 || g.Dy <= 0 || g.Dx <= 0 {
		return fmt.Errorf("cell sizes must be positive, got %gx%gx%g", g.Dz, g.Dy, g.Dx)
	}
	return nil
}

// CacheKey returns the canonical string key identifying this geometry in the
// kernel cache. Counts are formatted as integers and sizes with one decimal
// place, so distinct geometries in any reasonable range map to distinct keys.
func (g Geometry) CacheKey() string {
	return fmt.Sprintf("%dx%dx%d_%.1fx%.1fx%.1f_lbl", g.Nz, g.Ny, g.Nx, g.Dz, g.Dy, g.Dx)
}

// LayerCells returns the number of cells in one horizontal layer.
func (g Geometry) LayerCells() int { return g.Ny * g.Nx }

// PaddedRows returns the row count of the circulant-embedded (zero-padded)
// kernel, always exactly double the unpadded row count.
func (g Geometry) PaddedRows() int { return 2 * g.Ny }

// PaddedCols returns the column count of the circulant-embedded kernel.
func (g Geometry) PaddedCols() int { return 2 * g.Nx }

// Point is a single observation point. Units are metres, z positive down.
type Point struct {
	X, Y, Z float64
}

// Prism is a rectangular source cell with a uniform density in kg/m³.
// Bounds are metres in the model frame, Z1 < Z2 with z positive down.
type Prism struct {
	X1, X2  float64
	Y1, Y2  float64
	Z1, Z2  float64
	Density float64
}

// Bounds is an axis-aligned volume in the model frame.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// LayerBounds returns the volume occupied by one depth layer. The layer stack
// starts at the standoff depth below the surface, so layer i spans
// [standoff + Dz·i, standoff + Dz·(i+1)] vertically and the full horizontal
// extent of the model, centred on the origin.
func (g Geometry) LayerBounds(layer int, standoff float64) Bounds {
	halfX := float64(g.Nx) * g.Dx / 2
	halfY := float64(g.Ny) * g.Dy / 2
	return Bounds{
		XMin: -halfX, XMax: halfX,
		YMin: -halfY, YMax: halfY,
		ZMin: standoff + g.Dz*float64(layer),
		ZMax: standoff + g.Dz*float64(layer+1),
	}
}

// LayerTiling tiles one depth layer into Ny·Nx prisms of uniform density, in
// row-major order (row = y index, column = x index). Tile (r, c) occupies
// cell (r, c) of the layer's horizontal grid.
func (g Geometry) LayerTiling(layer int, standoff, density float64) []Prism {
	b := g.LayerBounds(layer, standoff)
	prisms := make([]Prism, 0, g.LayerCells())
	for r := 0; r < g.Ny; r++ {
		y1 := b.YMin + g.Dy*float64(r)
		for c := 0; c < g.Nx; c++ {
			x1 := b.XMin + g.Dx*float64(c)
			prisms = append(prisms, Prism{
				X1: x1, X2: x1 + g.Dx,
				Y1: y1, Y2: y1 + g.Dy,
				Z1: b.ZMin, Z2: b.ZMax,
				Density: density,
			})
		}
	}
	return prisms
}

// ObservationGrid returns the regular Ny·Nx observation grid at height z,
// in row-major order. The grid is staggered half a cell inward from the
// horizontal extremes so each point sits directly above a cell centre.
func (g Geometry) ObservationGrid(z float64) []Point {
	b := g.LayerBounds(0, 0)
	points := make([]Point, 0, g.LayerCells())
	for r := 0; r < g.Ny; r++ {
		y := b.YMin + (float64(r)+0.5)*g.Dy
		for c := 0; c < g.Nx; c++ {
			x := b.XMin + (float64(c)+0.5)*g.Dx
			points = append(points, Point{X: x, Y: y, Z: z})
		}
	}
	return points
}

// ObservationOrigin returns the first point of the observation grid at
// height z: the reference point used during kernel generation. By translation
// invariance of the regular grid, the field at this point due to tile (r, c)
// equals the field at grid point (i, j) due to tile (i+r, j+c).
func (g Geometry) ObservationOrigin(z float64) Point {
	b := g.LayerBounds(0, 0)
	return Point{
		X: b.XMin + 0.5*g.Dx,
		Y: b.YMin + 0.5*g.Dy,
		Z: z,
	}
}
