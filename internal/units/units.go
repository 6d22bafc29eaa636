// Package units provides shared physical constants and unit conversions
// for gravity forward modelling.
package units

// GravConstant is the gravitational constant in SI units (m³ kg⁻¹ s⁻²).
// This is the value used inside the prism evaluator; classical gravimetry
// codes standardised on 6.673e-11 rather than the CODATA 6.674e-11.
const GravConstant = 6.673e-11

// SI2MGal converts an acceleration in m/s² to milligal.
const SI2MGal = 100000.0

// MGal2SI converts an acceleration in milligal to m/s².
const MGal2SI = 1.0 / SI2MGal

// ReferenceDensity is the default uniform density assigned during kernel
// generation, in kg/m³. The magnitude cancels out of the unit response but
// keeps intermediate values in a well-conditioned range.
const ReferenceDensity = 1000.0

// CellVolume returns the volume in m³ of a cell with the given edge lengths.
func CellVolume(dz, dy, dx float64) float64 {
	return dz * dy * dx
}
