package main

import (
	"context"
	"encoding/gob"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/gravity.model/internal/config"
	"github.com/banshee-data/gravity.model/internal/forward"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gravity-model <command> [flags]

commands:
  genkernel   generate (or refresh) the kernel cache for a geometry
  forward     run the forward model over a density volume

run "gravity-model <command> -h" for command flags
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "genkernel":
		err = runGenKernel(ctx, os.Args[2:])
	case "forward":
		err = runForward(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// modelFlags holds the flags shared by every command that constructs a model.
type modelFlags struct {
	dz, dy, dx float64
	nz, ny, nx int
	cacheDir   string
	configPath string
}

func (f *modelFlags) register(fs *flag.FlagSet) {
	fs.Float64Var(&f.dz, "dz", 50, "Cell depth in meters")
	fs.Float64Var(&f.dy, "dy", 100, "Cell height (row direction) in meters")
	fs.Float64Var(&f.dx, "dx", 100, "Cell width (column direction) in meters")
	fs.IntVar(&f.nz, "nz", 4, "Number of depth layers")
	fs.IntVar(&f.ny, "ny", 64, "Number of rows")
	fs.IntVar(&f.nx, "nx", 64, "Number of columns")
	fs.StringVar(&f.cacheDir, "cache-dir", "kernel-cache", "Kernel cache directory (empty disables persistence)")
	fs.StringVar(&f.configPath, "config", "", "Optional tuning config JSON file")
}

func (f *modelFlags) tuning() (*config.Tuning, error) {
	if f.configPath == "" {
		return nil, nil
	}
	return config.LoadTuning(f.configPath)
}

func (f *modelFlags) newModel(ctx context.Context) (*forward.Model, error) {
	tuning, err := f.tuning()
	if err != nil {
		return nil, err
	}
	return forward.NewModel(ctx,
		[3]float64{f.dz, f.dy, f.dx},
		[3]int{f.nz, f.ny, f.nx},
		f.cacheDir, tuning)
}

// runGenKernel builds the model, which loads or generates the kernel cache
// entry as a side effect, then exits. Useful for warming the cache ahead of
// batch forward runs.
func runGenKernel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("genkernel", flag.ExitOnError)
	var mf modelFlags
	mf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := mf.newModel(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	g := m.Geometry()
	log.Printf("kernel cache ready for %s under %s", g.CacheKey(), mf.cacheDir)
	return nil
}

func runForward(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forward", flag.ExitOnError)
	var mf modelFlags
	mf.register(fs)
	inPath := fs.String("in", "", "Input density volume (gob, required)")
	outPath := fs.String("out", "field.gob", "Output field volume (gob)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return fmt.Errorf("-in is required")
	}

	density, err := readVolume(*inPath)
	if err != nil {
		return fmt.Errorf("failed to read density volume: %w", err)
	}

	m, err := mf.newModel(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	field, err := m.Forward(ctx, density)
	if err != nil {
		return err
	}

	if err := writeVolume(*outPath, field); err != nil {
		return fmt.Errorf("failed to write field volume: %w", err)
	}
	log.Printf("forward model complete: %d batch x %d layers x %d x %d written to %s",
		field.Batch, field.Layers, field.Rows, field.Cols, *outPath)
	return nil
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

func writeVolume(path string, v *forward.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
