package sensor

import "fmt"

// CaptureMode selects the sensor's output pipeline.
type CaptureMode byte

const (
	// PointCloud streams raw detections as point cloud frames.
	PointCloud CaptureMode = 0
	// ObjectTracking streams tracked objects with position, velocity, and
	// acceleration estimates.
	ObjectTracking CaptureMode = 1
)

func (m CaptureMode) String() string {
	switch m {
	case PointCloud:
		return "point-cloud"
	case ObjectTracking:
		return "object-tracking"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}

// Valid reports whether m is a mode the sensor accepts.
func (m CaptureMode) Valid() bool {
	return m == PointCloud || m == ObjectTracking
}

// MovingFilter controls whether stationary returns are reported.
type MovingFilter byte

const (
	// MovingBoth reports moving and stationary returns.
	MovingBoth MovingFilter = 0
	// MovingObjectsOnly suppresses stationary returns.
	MovingObjectsOnly MovingFilter = 1
)

func (f MovingFilter) String() string {
	switch f {
	case MovingBoth:
		return "both"
	case MovingObjectsOnly:
		return "objects-only"
	default:
		return fmt.Sprintf("moving-filter(%d)", byte(f))
	}
}

// Valid reports whether f is a filter setting the sensor accepts.
func (f MovingFilter) Valid() bool {
	return f == MovingBoth || f == MovingObjectsOnly
}

// ResetCode selects the kind of reset performed by Reset.
type ResetCode byte

const (
	// ResetReboot restarts the sensor, keeping saved settings.
	ResetReboot ResetCode = 0
	// ResetFactorySettings restores the sensor to factory defaults.
	ResetFactorySettings ResetCode = 1
)

// Valid reports whether c is a reset code the sensor accepts.
func (c ResetCode) Valid() bool {
	return c == ResetReboot || c == ResetFactorySettings
}

// Density controls how many points the point cloud pipeline emits.
type Density byte

const (
	DensityNormal    Density = 0
	DensityDense     Density = 1
	DensityVeryDense Density = 2
)

func (d Density) String() string {
	switch d {
	case DensityNormal:
		return "normal"
	case DensityDense:
		return "dense"
	case DensityVeryDense:
		return "very-dense"
	default:
		return fmt.Sprintf("density(%d)", byte(d))
	}
}

// Valid reports whether d is a density the sensor accepts.
func (d Density) Valid() bool {
	return d <= DensityVeryDense
}

// ObjectType tunes the object tracking classifier for an expected target
// class.
type ObjectType byte

const (
	ObjectTypeDog         ObjectType = 0
	ObjectTypePerson      ObjectType = 1
	ObjectTypeCyclist     ObjectType = 2
	ObjectTypeSlowVehicle ObjectType = 3
	ObjectTypeFastVehicle ObjectType = 4
)

func (o ObjectType) String() string {
	switch o {
	case ObjectTypeDog:
		return "dog"
	case ObjectTypePerson:
		return "person"
	case ObjectTypeCyclist:
		return "cyclist"
	case ObjectTypeSlowVehicle:
		return "slow-vehicle"
	case ObjectTypeFastVehicle:
		return "fast-vehicle"
	default:
		return fmt.Sprintf("object-type(%d)", byte(o))
	}
}

// Valid reports whether o is a classifier tuning the sensor accepts.
func (o ObjectType) Valid() bool {
	return o <= ObjectTypeFastVehicle
}

// Sensor hardware limits.
const (
	// MaxFrameRate is the fastest capture rate in frames per second.
	MaxFrameRate = 20
	// MaxDistanceMillimetres is the far limit of the distance filter.
	MaxDistanceMillimetres = 10000
	// AngleLimitDegrees bounds the angle filter on either side of
	// boresight.
	AngleLimitDegrees = 55
	// MaxSensitivity is the highest detection sensitivity level.
	MaxSensitivity = 9
	// MaxSamples is the largest fixed-length capture the sensor supports.
	MaxSamples = 255
)
