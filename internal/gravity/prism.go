// Package gravity evaluates the vertical gravitational attraction of
// uniform-density rectangular prisms using the closed-form solution of
// Nagy (1966). This is the point-source kernel the layer convolution scheme
// is built from: one scalar per (observation point, source cell) pair.
package gravity

import (
	"fmt"
	"math"

	"github.com/banshee-data/gravity.model/internal/geom"
	"github.com/banshee-data/gravity.model/internal/units"
)

// Gz returns the vertical gravity component at p due to the prism, in mGal.
// z is positive down, so a positive density contrast below the observation
// point yields a positive anomaly.
//
// The closed form contains log terms that are singular when p lies on a
// prism face; observation planes must keep a nonzero vertical offset from
// the source volume.
func Gz(p geom.Point, prism geom.Prism) float64 {
	// Corner offsets relative to the observation point. Index 0 holds the
	// upper bound so the (-1)^(i+j+k) corner signs come out right.
	x := [2]float64{prism.X2 - p.X, prism.X1 - p.X}
	y := [2]float64{prism.Y2 - p.Y, prism.Y1 - p.Y}
	z := [2]float64{prism.Z2 - p.Z, prism.Z1 - p.Z}

	var sum float64
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				r := math.Sqrt(x[i]*x[i] + y[j]*y[j] + z[k]*z[k])
				kernel := -(x[i]*math.Log(y[j]+r) +
					y[j]*math.Log(x[i]+r) -
					z[k]*math.Atan2(x[i]*y[j], z[k]*r))
				if (i+j+k)%2 == 0 {
					sum += kernel
				} else {
					sum -= kernel
				}
			}
		}
	}
	return sum * prism.Density * units.GravConstant * units.SI2MGal
}

// Evaluator is the point-source kernel contract used during kernel cache
// generation: given one observation point and one source prism, produce one
// field scalar. Implementations must be pure and safe for concurrent use.
type Evaluator interface {
	Gz(p geom.Point, prism geom.Prism) (float64, error)
}

// PrismEvaluator is the production Evaluator backed by the closed-form Gz.
type PrismEvaluator struct{}

// Gz implements Evaluator. It rejects observation points vertically inside
// the prism's depth range, where the closed form is singular.
func (PrismEvaluator) Gz(p geom.Point, prism geom.Prism) (float64, error) {
	if p.Z >= prism.Z1 && p.Z <= prism.Z2 {
		return 0, fmt.Errorf("observation point z=%g inside prism depth range [%g, %g]", p.Z, prism.Z1, prism.Z2)
	}
	return Gz(p, prism), nil
}
