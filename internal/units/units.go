// Package units provides shared constants, validation, and conversion for
// the distance, speed, and acceleration units accepted by the sensor API.
//
// The sensor itself always speaks SI (millimetres on the wire, metres and
// metres per second at the API boundary); callers may configure any of the
// units below and values are converted on the way in and out.
package units

import (
	"fmt"
	"math"
)

// Distance unit constants
const (
	Millimetres = "mm"
	Centimetres = "cm"
	Metres      = "m"
	Kilometres  = "km"
	Inches      = "in"
	Feet        = "ft"
	Miles       = "mi"
)

// Speed unit constants
const (
	MillimetresPerSecond = "mm/s"
	CentimetresPerSecond = "cm/s"
	MetresPerSecond      = "m/s"
	KilometresPerHour    = "km/h"
	InchesPerSecond      = "in/s"
	FeetPerSecond        = "ft/s"
	MilesPerHour         = "mi/h"
)

// Acceleration unit constants
const (
	MillimetresPerSecondSquared = "mm/s^2"
	CentimetresPerSecondSquared = "cm/s^2"
	MetresPerSecondSquared      = "m/s^2"
	InchesPerSecondSquared      = "in/s^2"
	FeetPerSecondSquared        = "ft/s^2"
)

// Conversion factors from SI (metres) to each distance unit.
var distanceFactors = map[string]float64{
	Millimetres: 1000,
	Centimetres: 100,
	Metres:      1,
	Kilometres:  1.0 / 1000,
	Inches:      39.3701,
	Feet:        3.28084,
	Miles:       1.0 / 1609.344,
}

// Conversion factors from SI (metres per second) to each speed unit.
var speedFactors = map[string]float64{
	MillimetresPerSecond: 1000,
	CentimetresPerSecond: 100,
	MetresPerSecond:      1,
	KilometresPerHour:    3.6,
	InchesPerSecond:      39.3701,
	FeetPerSecond:        3.28084,
	MilesPerHour:         2.237,
}

// Conversion factors from SI (metres per second squared) to each
// acceleration unit.
var accelerationFactors = map[string]float64{
	MillimetresPerSecondSquared: 1000,
	CentimetresPerSecondSquared: 100,
	MetresPerSecondSquared:      1,
	InchesPerSecondSquared:      39.3701,
	FeetPerSecondSquared:        3.28084,
}

// IsValidDistance checks if the given unit is a supported distance unit.
func IsValidDistance(unit string) bool {
	_, ok := distanceFactors[unit]
	return ok
}

// IsValidSpeed checks if the given unit is a supported speed unit.
func IsValidSpeed(unit string) bool {
	_, ok := speedFactors[unit]
	return ok
}

// IsValidAcceleration checks if the given unit is a supported acceleration unit.
func IsValidAcceleration(unit string) bool {
	_, ok := accelerationFactors[unit]
	return ok
}

// DistanceToSI converts a distance in the given unit to metres.
func DistanceToSI(unit string, distance float64) (float64, error) {
	factor, ok := distanceFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid distance unit %q", unit)
	}
	return RoundSig(distance/factor, 4), nil
}

// DistanceFromSI converts a distance in metres to the given unit.
func DistanceFromSI(unit string, distance float64) (float64, error) {
	factor, ok := distanceFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid distance unit %q", unit)
	}
	return RoundSig(distance*factor, 4), nil
}

// SpeedToSI converts a speed in the given unit to metres per second.
func SpeedToSI(unit string, speed float64) (float64, error) {
	factor, ok := speedFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid speed unit %q", unit)
	}
	return RoundSig(speed/factor, 4), nil
}

// SpeedFromSI converts a speed in metres per second to the given unit.
func SpeedFromSI(unit string, speed float64) (float64, error) {
	factor, ok := speedFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid speed unit %q", unit)
	}
	return RoundSig(speed*factor, 4), nil
}

// AccelerationToSI converts an acceleration in the given unit to metres per
// second squared.
func AccelerationToSI(unit string, acceleration float64) (float64, error) {
	factor, ok := accelerationFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid acceleration unit %q", unit)
	}
	return RoundSig(acceleration/factor, 4), nil
}

// AccelerationFromSI converts an acceleration in metres per second squared to
// the given unit.
func AccelerationFromSI(unit string, acceleration float64) (float64, error) {
	factor, ok := accelerationFactors[unit]
	if !ok {
		return 0, fmt.Errorf("invalid acceleration unit %q", unit)
	}
	return RoundSig(acceleration*factor, 4), nil
}

// RoundSig rounds x to the given number of significant figures.
func RoundSig(x float64, sig int) float64 {
	if x == 0 {
		return 0
	}
	digits := sig - int(math.Floor(math.Log10(math.Abs(x)))) - 1
	scale := math.Pow(10, float64(digits))
	return math.Round(x*scale) / scale
}
