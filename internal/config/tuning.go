// Package config holds the tuning parameters of the forward model. Fields
// are pointers so a partial JSON file only overrides what it names; the Get*
// accessors supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Tuning represents the tunable constants of kernel generation and the
// forward pass. The defaults reproduce the reference model configuration.
type Tuning struct {
	// Kernel generation params
	KernelWorkers           *int     `json:"kernel_workers,omitempty"`
	StandoffMeters          *float64 `json:"standoff_meters,omitempty"`
	ReferenceDensity        *float64 `json:"reference_density,omitempty"`
	ObservationHeightMeters *float64 `json:"observation_height_meters,omitempty"`

	// Forward pass params
	ForwardWorkers *int `json:"forward_workers,omitempty"` // 0 = GOMAXPROCS
}

// DefaultTuning returns a Tuning with all fields unset, so every accessor
// reports its default.
func DefaultTuning() *Tuning {
	return &Tuning{}
}

// LoadTuning loads a Tuning from a JSON file. Fields omitted from the file
// retain their defaults, so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are physically usable.
func (c *Tuning) Validate() error {
	if c.KernelWorkers != nil && *c.KernelWorkers < 1 {
		return fmt.Errorf("kernel_workers must be positive, got %d", *c.KernelWorkers)
	}
	if c.ForwardWorkers != nil && *c.ForwardWorkers < 0 {
		return fmt.Errorf("forward_workers must be non-negative, got %d", *c.ForwardWorkers)
	}
	if c.StandoffMeters != nil && *c.StandoffMeters <= 0 {
		return fmt.Errorf("standoff_meters must be positive, got %g", *c.StandoffMeters)
	}
	if c.ReferenceDensity != nil && *c.ReferenceDensity == 0 {
		return fmt.Errorf("reference_density must be nonzero")
	}
	if c.ObservationHeightMeters != nil && *c.ObservationHeightMeters >= 0 {
		// z is positive down; the observation plane must stay above ground
		// to keep clear of the evaluator's coincident-surface singularity.
		return fmt.Errorf("observation_height_meters must be negative, got %g", *c.ObservationHeightMeters)
	}
	return nil
}

// GetKernelWorkers returns the kernel generation worker count or the default.
func (c *Tuning) GetKernelWorkers() int {
	if c.KernelWorkers == nil {
		return 16 // default
	}
	return *c.KernelWorkers
}

// GetStandoffMeters returns the depth of the top of the layer stack or the default.
func (c *Tuning) GetStandoffMeters() float64 {
	if c.StandoffMeters == nil {
		return 20.0 // default
	}
	return *c.StandoffMeters
}

// GetReferenceDensity returns the kernel generation reference density or the default.
func (c *Tuning) GetReferenceDensity() float64 {
	if c.ReferenceDensity == nil {
		return 1000.0 // default, kg/m³
	}
	return *c.ReferenceDensity
}

// GetObservationHeightMeters returns the observation plane height or the default.
func (c *Tuning) GetObservationHeightMeters() float64 {
	if c.ObservationHeightMeters == nil {
		return -1.0 // default: 1 m above ground, off the layer top face
	}
	return *c.ObservationHeightMeters
}

// GetForwardWorkers returns the forward pass worker count or the default.
func (c *Tuning) GetForwardWorkers() int {
	if c.ForwardWorkers == nil || *c.ForwardWorkers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.ForwardWorkers
}
