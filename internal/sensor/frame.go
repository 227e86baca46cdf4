package sensor

import (
	"time"

	"github.com/banshee-data/radariq/internal/protocol"
	"github.com/banshee-data/radariq/internal/units"
)

// UnitSettings selects the units used for all values crossing the package
// boundary. The sensor itself always reports millimetres and millimetres
// per second; conversion happens on the way in and out.
type UnitSettings struct {
	Distance     string `json:"distance"`
	Speed        string `json:"speed"`
	Acceleration string `json:"acceleration"`
}

// DefaultUnits returns the SI defaults used when no units are configured.
func DefaultUnits() UnitSettings {
	return UnitSettings{
		Distance:     units.Metres,
		Speed:        units.MetresPerSecond,
		Acceleration: units.MetresPerSecondSquared,
	}
}

// Validate checks that every configured unit is supported.
func (u UnitSettings) Validate() error {
	if _, err := units.DistanceFromSI(u.Distance, 0); err != nil {
		return err
	}
	if _, err := units.SpeedFromSI(u.Speed, 0); err != nil {
		return err
	}
	if _, err := units.AccelerationFromSI(u.Acceleration, 0); err != nil {
		return err
	}
	return nil
}

// PointMeasurement is a single point cloud detection converted to the
// configured units.
type PointMeasurement struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Intensity uint8   `json:"intensity"`
	Velocity  float64 `json:"velocity"`
}

// ObjectMeasurement is a single tracked object converted to the configured
// units. The tracking ID is stable across frames while the sensor keeps
// sight of the object.
type ObjectMeasurement struct {
	TrackingID   int8       `json:"tracking_id"`
	Position     [3]float64 `json:"position"`
	Velocity     [3]float64 `json:"velocity"`
	Acceleration [3]float64 `json:"acceleration"`
}

// Frame is one complete capture frame. Exactly one of Points or Objects is
// populated depending on the capture mode.
type Frame struct {
	Number   uint64              `json:"number"`
	Captured time.Time           `json:"captured"`
	Mode     CaptureMode         `json:"mode"`
	Points   []PointMeasurement  `json:"points,omitempty"`
	Objects  []ObjectMeasurement `json:"objects,omitempty"`
}

// convertPoints converts raw millimetre points to the configured units.
func convertPoints(raw []protocol.Point, u UnitSettings) ([]PointMeasurement, error) {
	out := make([]PointMeasurement, len(raw))
	for i, p := range raw {
		x, err := units.DistanceFromSI(u.Distance, float64(p.X)/1000)
		if err != nil {
			return nil, err
		}
		y, err := units.DistanceFromSI(u.Distance, float64(p.Y)/1000)
		if err != nil {
			return nil, err
		}
		z, err := units.DistanceFromSI(u.Distance, float64(p.Z)/1000)
		if err != nil {
			return nil, err
		}
		v, err := units.SpeedFromSI(u.Speed, float64(p.Velocity)/1000)
		if err != nil {
			return nil, err
		}
		out[i] = PointMeasurement{X: x, Y: y, Z: z, Intensity: p.Intensity, Velocity: v}
	}
	return out, nil
}

// convertObjects converts raw millimetre objects to the configured units.
func convertObjects(raw []protocol.Object, u UnitSettings) ([]ObjectMeasurement, error) {
	out := make([]ObjectMeasurement, len(raw))
	for i, o := range raw {
		m := ObjectMeasurement{TrackingID: o.TrackingID}
		for j, mm := range [3]int16{o.XPos, o.YPos, o.ZPos} {
			v, err := units.DistanceFromSI(u.Distance, float64(mm)/1000)
			if err != nil {
				return nil, err
			}
			m.Position[j] = v
		}
		for j, mm := range [3]int16{o.XVel, o.YVel, o.ZVel} {
			v, err := units.SpeedFromSI(u.Speed, float64(mm)/1000)
			if err != nil {
				return nil, err
			}
			m.Velocity[j] = v
		}
		for j, mm := range [3]int16{o.XAcc, o.YAcc, o.ZAcc} {
			v, err := units.AccelerationFromSI(u.Acceleration, float64(mm)/1000)
			if err != nil {
				return nil, err
			}
			m.Acceleration[j] = v
		}
		out[i] = m
	}
	return out, nil
}
