package units

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDistanceToSI(t *testing.T) {
	tests := []struct {
		unit  string
		value float64
		want  float64
	}{
		{Millimetres, 1000, 1},
		{Centimetres, 100, 1},
		{Metres, 1, 1},
		{Kilometres, 1, 1000},
		{Inches, 39.3701, 1},
		{Feet, 3.28084, 1},
		{Miles, 1, 1609},
	}

	for _, tt := range tests {
		got, err := DistanceToSI(tt.unit, tt.value)
		if err != nil {
			t.Errorf("DistanceToSI(%q, %v) returned error: %v", tt.unit, tt.value, err)
			continue
		}
		if !almostEqual(got, tt.want) {
			t.Errorf("DistanceToSI(%q, %v) = %v, want %v", tt.unit, tt.value, got, tt.want)
		}
	}
}

func TestDistanceFromSI(t *testing.T) {
	tests := []struct {
		unit  string
		value float64
		want  float64
	}{
		{Millimetres, 1, 1000},
		{Centimetres, 1, 100},
		{Metres, 1, 1},
		{Kilometres, 1000, 1},
		{Inches, 1, 39.37},
		{Feet, 1, 3.281},
		{Miles, 1609.344, 1},
	}

	for _, tt := range tests {
		got, err := DistanceFromSI(tt.unit, tt.value)
		if err != nil {
			t.Errorf("DistanceFromSI(%q, %v) returned error: %v", tt.unit, tt.value, err)
			continue
		}
		if !almostEqual(got, tt.want) {
			t.Errorf("DistanceFromSI(%q, %v) = %v, want %v", tt.unit, tt.value, got, tt.want)
		}
	}
}

func TestSpeedConversions(t *testing.T) {
	got, err := SpeedToSI(KilometresPerHour, 3.6)
	if err != nil {
		t.Fatalf("SpeedToSI returned error: %v", err)
	}
	if !almostEqual(got, 1) {
		t.Errorf("SpeedToSI(km/h, 3.6) = %v, want 1", got)
	}

	got, err = SpeedFromSI(MilesPerHour, 1)
	if err != nil {
		t.Fatalf("SpeedFromSI returned error: %v", err)
	}
	if !almostEqual(got, 2.237) {
		t.Errorf("SpeedFromSI(mi/h, 1) = %v, want 2.237", got)
	}
}

func TestAccelerationConversions(t *testing.T) {
	got, err := AccelerationToSI(MillimetresPerSecondSquared, 1000)
	if err != nil {
		t.Fatalf("AccelerationToSI returned error: %v", err)
	}
	if !almostEqual(got, 1) {
		t.Errorf("AccelerationToSI(mm/s^2, 1000) = %v, want 1", got)
	}

	got, err = AccelerationFromSI(FeetPerSecondSquared, 1)
	if err != nil {
		t.Fatalf("AccelerationFromSI returned error: %v", err)
	}
	if !almostEqual(got, 3.281) {
		t.Errorf("AccelerationFromSI(ft/s^2, 1) = %v, want 3.281", got)
	}
}

func TestInvalidUnits(t *testing.T) {
	if _, err := DistanceToSI("furlongs", 1); err == nil {
		t.Error("expected error for invalid distance unit")
	}
	if _, err := SpeedFromSI("knots", 1); err == nil {
		t.Error("expected error for invalid speed unit")
	}
	if _, err := AccelerationToSI("g", 1); err == nil {
		t.Error("expected error for invalid acceleration unit")
	}
}

func TestIsValid(t *testing.T) {
	if !IsValidDistance(Metres) {
		t.Error("metres should be a valid distance unit")
	}
	if IsValidDistance(MetresPerSecond) {
		t.Error("m/s should not be a valid distance unit")
	}
	if !IsValidSpeed(MilesPerHour) {
		t.Error("mi/h should be a valid speed unit")
	}
	if !IsValidAcceleration(MetresPerSecondSquared) {
		t.Error("m/s^2 should be a valid acceleration unit")
	}
}

func TestRoundSig(t *testing.T) {
	tests := []struct {
		in   float64
		sig  int
		want float64
	}{
		{0, 4, 0},
		{1234.5678, 4, 1235},
		{0.00123456, 4, 0.001235},
		{-9.87654, 3, -9.88},
		{39.3701, 4, 39.37},
	}

	for _, tt := range tests {
		if got := RoundSig(tt.in, tt.sig); !almostEqual(got, tt.want) {
			t.Errorf("RoundSig(%v, %d) = %v, want %v", tt.in, tt.sig, got, tt.want)
		}
	}
}
