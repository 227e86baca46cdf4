// Package analysis computes summary statistics over captured frames.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/radariq/internal/sensor"
)

// FrameSummary aggregates one point cloud frame. Values are in the units
// the frame was captured with.
type FrameSummary struct {
	PointCount     int        `json:"point_count"`
	Centroid       [3]float64 `json:"centroid"`
	MeanRange      float64    `json:"mean_range"`
	MaxRange       float64    `json:"max_range"`
	MeanIntensity  float64    `json:"mean_intensity"`
	MeanVelocity   float64    `json:"mean_velocity"`
	VelocityStdDev float64    `json:"velocity_std_dev"`
	MedianVelocity float64    `json:"median_velocity"`
	P95Speed       float64    `json:"p95_speed"`
}

// SummarizePoints computes the frame summary for a set of point
// measurements. The zero summary is returned for an empty frame.
func SummarizePoints(points []sensor.PointMeasurement) FrameSummary {
	if len(points) == 0 {
		return FrameSummary{}
	}

	n := len(points)
	ranges := make([]float64, n)
	intensities := make([]float64, n)
	velocities := make([]float64, n)
	speeds := make([]float64, n)

	var summary FrameSummary
	summary.PointCount = n

	for i, p := range points {
		summary.Centroid[0] += p.X / float64(n)
		summary.Centroid[1] += p.Y / float64(n)
		summary.Centroid[2] += p.Z / float64(n)
		ranges[i] = math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		intensities[i] = float64(p.Intensity)
		velocities[i] = p.Velocity
		speeds[i] = math.Abs(p.Velocity)
	}

	summary.MeanRange = stat.Mean(ranges, nil)
	summary.MaxRange = floatsMax(ranges)
	summary.MeanIntensity = stat.Mean(intensities, nil)
	summary.MeanVelocity = stat.Mean(velocities, nil)
	if n > 1 {
		summary.VelocityStdDev = stat.StdDev(velocities, nil)
	}

	sort.Float64s(velocities)
	summary.MedianVelocity = stat.Quantile(0.5, stat.Empirical, velocities, nil)
	sort.Float64s(speeds)
	summary.P95Speed = stat.Quantile(0.95, stat.Empirical, speeds, nil)

	return summary
}

// ObjectSummary aggregates one object tracking frame.
type ObjectSummary struct {
	ObjectCount int     `json:"object_count"`
	MeanSpeed   float64 `json:"mean_speed"`
	MaxSpeed    float64 `json:"max_speed"`
	MeanRange   float64 `json:"mean_range"`
}

// SummarizeObjects computes the frame summary for a set of tracked
// objects. Speed is the magnitude of the velocity vector.
func SummarizeObjects(objects []sensor.ObjectMeasurement) ObjectSummary {
	if len(objects) == 0 {
		return ObjectSummary{}
	}

	speeds := make([]float64, len(objects))
	ranges := make([]float64, len(objects))
	for i, o := range objects {
		speeds[i] = math.Sqrt(o.Velocity[0]*o.Velocity[0] + o.Velocity[1]*o.Velocity[1] + o.Velocity[2]*o.Velocity[2])
		ranges[i] = math.Sqrt(o.Position[0]*o.Position[0] + o.Position[1]*o.Position[1] + o.Position[2]*o.Position[2])
	}

	return ObjectSummary{
		ObjectCount: len(objects),
		MeanSpeed:   stat.Mean(speeds, nil),
		MaxSpeed:    floatsMax(speeds),
		MeanRange:   stat.Mean(ranges, nil),
	}
}

func floatsMax(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	return max
}
