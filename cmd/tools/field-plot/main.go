// field-plot renders one layer of a forward-modelled field volume as a
// heatmap PNG, for eyeballing model output without a full analysis stack.
package main

import (
	"encoding/gob"
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gravity.model/internal/forward"
)

// fieldGrid adapts one (batch, layer) slice of a volume to the plotter's
// grid interface. X and Y are in meters from the grid origin.
type fieldGrid struct {
	vol    *forward.Volume
	batch  int
	layer  int
	dy, dx float64
}

func (g fieldGrid) Dims() (int, int)   { return g.vol.Cols, g.vol.Rows }
func (g fieldGrid) Z(c, r int) float64 { return g.vol.At(g.batch, g.layer, r, c) }
func (g fieldGrid) X(c int) float64    { return float64(c) * g.dx }
func (g fieldGrid) Y(r int) float64    { return float64(r) * g.dy }

func main() {
	inPath := flag.String("in", "", "Field volume file (gob, required)")
	outPath := flag.String("out", "field.png", "Output PNG path")
	batch := flag.Int("batch", 0, "Batch index to plot")
	layer := flag.Int("layer", 0, "Depth layer to plot")
	dy := flag.Float64("dy", 100, "Cell height in meters (axis scale only)")
	dx := flag.Float64("dx", 100, "Cell width in meters (axis scale only)")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "-in is required")
		flag.Usage()
		os.Exit(2)
	}

	vol, err := readVolume(*inPath)
	if err != nil {
		log.Fatalf("failed to read field volume: %v", err)
	}
	if *batch < 0 || *batch >= vol.Batch || *layer < 0 || *layer >= vol.Layers {
		log.Fatalf("batch %d / layer %d out of range for %dx%d volume", *batch, *layer, vol.Batch, vol.Layers)
	}

	grid := fieldGrid{vol: vol, batch: *batch, layer: *layer, dy: *dy, dx: *dx}
	hm := plotter.NewHeatMap(grid, palette.Heat(64, 1))

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Field layer %d (batch %d)", *layer, *batch)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(hm)

	if err := p.Save(10*vg.Inch, 8*vg.Inch, *outPath); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("wrote %s (min %.4g, max %.4g)", *outPath, hm.Min, hm.Max)
}

func readVolume(path string) (*forward.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var v forward.Volume
	if err := gob.NewDecoder(f).Decode(&v); err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}
