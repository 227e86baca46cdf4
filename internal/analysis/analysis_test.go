package analysis

import (
	"math"
	"testing"

	"github.com/banshee-data/radariq/internal/sensor"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizePointsEmpty(t *testing.T) {
	summary := SummarizePoints(nil)
	if summary.PointCount != 0 {
		t.Errorf("PointCount = %d, want 0", summary.PointCount)
	}
}

func TestSummarizePoints(t *testing.T) {
	points := []sensor.PointMeasurement{
		{X: 3, Y: 4, Z: 0, Intensity: 10, Velocity: -2},
		{X: 0, Y: 5, Z: 0, Intensity: 30, Velocity: 2},
	}

	summary := SummarizePoints(points)

	if summary.PointCount != 2 {
		t.Fatalf("PointCount = %d, want 2", summary.PointCount)
	}
	if !almostEqual(summary.Centroid[0], 1.5) || !almostEqual(summary.Centroid[1], 4.5) {
		t.Errorf("Centroid = %v", summary.Centroid)
	}
	// Both points are at range 5.
	if !almostEqual(summary.MeanRange, 5) {
		t.Errorf("MeanRange = %f, want 5", summary.MeanRange)
	}
	if !almostEqual(summary.MaxRange, 5) {
		t.Errorf("MaxRange = %f, want 5", summary.MaxRange)
	}
	if !almostEqual(summary.MeanIntensity, 20) {
		t.Errorf("MeanIntensity = %f, want 20", summary.MeanIntensity)
	}
	if !almostEqual(summary.MeanVelocity, 0) {
		t.Errorf("MeanVelocity = %f, want 0", summary.MeanVelocity)
	}
	if summary.VelocityStdDev <= 0 {
		t.Errorf("VelocityStdDev = %f, want > 0", summary.VelocityStdDev)
	}
	if !almostEqual(summary.P95Speed, 2) {
		t.Errorf("P95Speed = %f, want 2", summary.P95Speed)
	}
}

func TestSummarizeSinglePointHasZeroStdDev(t *testing.T) {
	summary := SummarizePoints([]sensor.PointMeasurement{{X: 1, Y: 1, Velocity: 3}})
	if summary.VelocityStdDev != 0 {
		t.Errorf("VelocityStdDev = %f, want 0 for single point", summary.VelocityStdDev)
	}
	if !almostEqual(summary.MedianVelocity, 3) {
		t.Errorf("MedianVelocity = %f, want 3", summary.MedianVelocity)
	}
}

func TestSummarizeObjects(t *testing.T) {
	objects := []sensor.ObjectMeasurement{
		{Position: [3]float64{0, 3, 4}, Velocity: [3]float64{0, 1, 0}},
		{Position: [3]float64{0, 5, 0}, Velocity: [3]float64{0, 3, 4}},
	}

	summary := SummarizeObjects(objects)

	if summary.ObjectCount != 2 {
		t.Fatalf("ObjectCount = %d, want 2", summary.ObjectCount)
	}
	if !almostEqual(summary.MeanSpeed, 3) {
		t.Errorf("MeanSpeed = %f, want 3", summary.MeanSpeed)
	}
	if !almostEqual(summary.MaxSpeed, 5) {
		t.Errorf("MaxSpeed = %f, want 5", summary.MaxSpeed)
	}
	if !almostEqual(summary.MeanRange, 5) {
		t.Errorf("MeanRange = %f, want 5", summary.MeanRange)
	}
}

func TestSummarizeObjectsEmpty(t *testing.T) {
	summary := SummarizeObjects(nil)
	if summary.ObjectCount != 0 || summary.MaxSpeed != 0 {
		t.Errorf("summary = %+v, want zero value", summary)
	}
}
