// Package sensor drives a RadarIQ-M1 radar module over a serial mux. It
// exposes the sensor's configuration surface, the capture lifecycle, and a
// bounded queue of assembled frames converted to caller-selected units.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/radariq/internal/monitoring"
	"github.com/banshee-data/radariq/internal/protocol"
	"github.com/banshee-data/radariq/internal/serialmux"
	"github.com/banshee-data/radariq/internal/timeutil"
	"github.com/banshee-data/radariq/internal/units"
)

var (
	ErrCapturing    = errors.New("capture already running")
	ErrNotCapturing = errors.New("no capture running")
	ErrClosed       = errors.New("sensor closed")
	ErrTimeout      = errors.New("timed out waiting for sensor response")
)

const (
	// DefaultTimeout bounds how long a command waits for its response.
	DefaultTimeout = 2 * time.Second
	// DefaultQueueDepth is the frame queue size when none is configured.
	// When the queue is full the oldest frame is discarded so consumers
	// always see recent data.
	DefaultQueueDepth = 2
)

// Sensor is a RadarIQ-M1 module attached via a serial mux. All methods are
// safe for concurrent use.
type Sensor struct {
	mux        serialmux.SerialMuxInterface
	clock      timeutil.Clock
	timeout    time.Duration
	queueDepth int

	mu            sync.Mutex
	unitSettings  UnitSettings
	mirrorX       bool
	frameCount    uint64
	capturing     bool
	captureCancel func()
	captureDone   chan struct{}
	closed        bool

	frames chan Frame

	statsMu   sync.Mutex
	coreStats *protocol.CoreStats
	pcStats   *protocol.PointCloudStats
}

// Option configures a Sensor at construction time.
type Option func(*Sensor)

// WithClock substitutes the clock, used by tests to control timeouts.
func WithClock(c timeutil.Clock) Option {
	return func(s *Sensor) { s.clock = c }
}

// WithTimeout overrides the per-command response timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sensor) { s.timeout = d }
}

// WithQueueDepth sets the capacity of the frame queue.
func WithQueueDepth(n int) Option {
	return func(s *Sensor) { s.queueDepth = n }
}

// WithUnits sets the units used for all values crossing the package
// boundary.
func WithUnits(u UnitSettings) Option {
	return func(s *Sensor) { s.unitSettings = u }
}

// New creates a Sensor over the given mux. The mux's Monitor loop must be
// running for any sensor operation to complete.
func New(mux serialmux.SerialMuxInterface, opts ...Option) (*Sensor, error) {
	s := &Sensor{
		mux:          mux,
		clock:        timeutil.RealClock{},
		timeout:      DefaultTimeout,
		queueDepth:   DefaultQueueDepth,
		unitSettings: DefaultUnits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.unitSettings.Validate(); err != nil {
		return nil, err
	}
	if s.queueDepth < 1 {
		return nil, fmt.Errorf("queue depth must be at least 1, got %d", s.queueDepth)
	}
	s.frames = make(chan Frame, s.queueDepth)
	return s, nil
}

// Units returns the currently configured units.
func (s *Sensor) Units() UnitSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unitSettings
}

// SetUnits changes the units used for subsequent values. Frames already in
// the queue keep the units they were converted with.
func (s *Sensor) SetUnits(u UnitSettings) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unitSettings = u
	return nil
}

// Mirror reports whether the X axis is flipped on outgoing frames.
func (s *Sensor) Mirror() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirrorX
}

// SetMirror flips the X axis of all subsequent frames. Useful when the
// module is mounted upside down. This is a host-side transform; nothing is
// sent to the sensor.
func (s *Sensor) SetMirror(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrorX = enabled
}

func logMessage(msg protocol.Message) {
	monitoring.Logf("sensor %s (code %d): %s", msg.Level, msg.Code, msg.Text)
}

// transaction sends a command payload and waits for the matching response.
// Diagnostic messages arriving in between are logged; streamed data packets
// are ignored and keep flowing to capture subscribers.
func (s *Sensor) transaction(payload []byte, want protocol.Command) ([]byte, error) {
	id, ch := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	if err := s.mux.SendPacket(payload); err != nil {
		return nil, err
	}

	timer := s.clock.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				return nil, ErrClosed
			}
			if len(resp) == 0 {
				continue
			}
			if protocol.Command(resp[0]) == protocol.CmdMessage {
				if msg, err := protocol.ParseMessage(resp); err == nil {
					logMessage(msg)
				}
				continue
			}
			if protocol.IsResponse(resp, want) {
				return resp, nil
			}
		case <-timer.C():
			return nil, fmt.Errorf("%w: %s", ErrTimeout, want)
		}
	}
}

// getByte requests a single-byte setting from the sensor.
func (s *Sensor) getByte(cmd protocol.Command) (byte, error) {
	resp, err := s.transaction(protocol.Request(cmd), cmd)
	if err != nil {
		return 0, err
	}
	return protocol.ParseByteResponse(resp, cmd)
}

// setByte writes a single-byte setting and verifies the sensor's echo.
func (s *Sensor) setByte(cmd protocol.Command, v byte) error {
	resp, err := s.transaction(protocol.SetByte(cmd, v), cmd)
	if err != nil {
		return err
	}
	got, err := protocol.ParseByteResponse(resp, cmd)
	if err != nil {
		return err
	}
	if got != v {
		return fmt.Errorf("sensor reported %s %d after setting %d", cmd, got, v)
	}
	return nil
}

// Version returns the sensor's firmware and hardware versions.
func (s *Sensor) Version() (protocol.VersionInfo, error) {
	resp, err := s.transaction(protocol.Request(protocol.CmdVersion), protocol.CmdVersion)
	if err != nil {
		return protocol.VersionInfo{}, err
	}
	return protocol.ParseVersion(resp)
}

// SerialNumber returns the sensor's serial number.
func (s *Sensor) SerialNumber() (string, error) {
	resp, err := s.transaction(protocol.Request(protocol.CmdSerialNumber), protocol.CmdSerialNumber)
	if err != nil {
		return "", err
	}
	return protocol.ParseSerialNumber(resp)
}

// ApplicationVersions returns the versions of the four radar application
// slots on the controller.
func (s *Sensor) ApplicationVersions() ([]protocol.ApplicationVersion, error) {
	var out []protocol.ApplicationVersion
	for slot := byte(1); slot <= 4; slot++ {
		resp, err := s.transaction(protocol.AppVersionRequest(slot), protocol.CmdAppVersions)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		av, err := protocol.ParseApplicationVersion(resp)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		out = append(out, av)
	}
	return out, nil
}

// Reset reboots the sensor or restores factory settings. The serial
// connection survives a reboot but settings queries should be retried
// until the sensor is back up.
func (s *Sensor) Reset(code ResetCode) error {
	if !code.Valid() {
		return fmt.Errorf("invalid reset code %d", code)
	}
	resp, err := s.transaction(protocol.SetByte(protocol.CmdReset, byte(code)), protocol.CmdReset)
	if err != nil {
		return err
	}
	return protocol.ParseAck(resp, protocol.CmdReset)
}

// Mode returns the current capture mode.
func (s *Sensor) Mode() (CaptureMode, error) {
	v, err := s.getByte(protocol.CmdMode)
	return CaptureMode(v), err
}

// SetMode selects point cloud or object tracking output.
func (s *Sensor) SetMode(mode CaptureMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid capture mode %d", mode)
	}
	return s.setByte(protocol.CmdMode, byte(mode))
}

// FrameRate returns the capture frame rate in frames per second.
func (s *Sensor) FrameRate() (int, error) {
	v, err := s.getByte(protocol.CmdFrameRate)
	return int(v), err
}

// SetFrameRate sets the capture frame rate in frames per second (0 to 20).
func (s *Sensor) SetFrameRate(rate int) error {
	if rate < 0 || rate > MaxFrameRate {
		return fmt.Errorf("frame rate %d out of range 0-%d", rate, MaxFrameRate)
	}
	return s.setByte(protocol.CmdFrameRate, byte(rate))
}

// toMillimetres converts a caller-facing distance to whole millimetres.
func toMillimetres(unit string, v float64) (int, error) {
	si, err := units.DistanceToSI(unit, v)
	if err != nil {
		return 0, err
	}
	return int(math.Round(si * 1000)), nil
}

// fromMillimetres converts whole millimetres to the caller-facing unit.
func fromMillimetres(unit string, mm int) (float64, error) {
	return units.DistanceFromSI(unit, float64(mm)/1000)
}

// DistanceFilter returns the distance filter bounds in the configured
// distance unit.
func (s *Sensor) DistanceFilter() (min, max float64, err error) {
	resp, err := s.transaction(protocol.Request(protocol.CmdDistanceFilter), protocol.CmdDistanceFilter)
	if err != nil {
		return 0, 0, err
	}
	lo, hi, err := protocol.ParseUint16Pair(resp, protocol.CmdDistanceFilter)
	if err != nil {
		return 0, 0, err
	}
	unit := s.Units().Distance
	if min, err = fromMillimetres(unit, int(lo)); err != nil {
		return 0, 0, err
	}
	if max, err = fromMillimetres(unit, int(hi)); err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

// SetDistanceFilter limits reported detections to the given distance range,
// expressed in the configured distance unit. The sensor supports 0 to 10
// metres.
func (s *Sensor) SetDistanceFilter(min, max float64) error {
	unit := s.Units().Distance
	lo, err := toMillimetres(unit, min)
	if err != nil {
		return err
	}
	hi, err := toMillimetres(unit, max)
	if err != nil {
		return err
	}
	if lo < 0 || hi > MaxDistanceMillimetres {
		return fmt.Errorf("distance filter %d-%dmm out of range 0-%dmm", lo, hi, MaxDistanceMillimetres)
	}
	if lo > hi {
		return fmt.Errorf("distance filter minimum %dmm exceeds maximum %dmm", lo, hi)
	}

	resp, err := s.transaction(protocol.SetUint16Pair(protocol.CmdDistanceFilter, uint16(lo), uint16(hi)), protocol.CmdDistanceFilter)
	if err != nil {
		return err
	}
	gotLo, gotHi, err := protocol.ParseUint16Pair(resp, protocol.CmdDistanceFilter)
	if err != nil {
		return err
	}
	if int(gotLo) != lo || int(gotHi) != hi {
		return fmt.Errorf("sensor reported distance filter %d-%dmm after setting %d-%dmm", gotLo, gotHi, lo, hi)
	}
	return nil
}

// AngleFilter returns the angle filter bounds in degrees.
func (s *Sensor) AngleFilter() (min, max int, err error) {
	resp, err := s.transaction(protocol.Request(protocol.CmdAngleFilter), protocol.CmdAngleFilter)
	if err != nil {
		return 0, 0, err
	}
	lo, hi, err := protocol.ParseInt8Pair(resp, protocol.CmdAngleFilter)
	return int(lo), int(hi), err
}

// SetAngleFilter limits reported detections to the given azimuth range in
// degrees, between -55 and 55 either side of boresight.
func (s *Sensor) SetAngleFilter(min, max int) error {
	if min < -AngleLimitDegrees || max > AngleLimitDegrees {
		return fmt.Errorf("angle filter %d-%d out of range %d-%d", min, max, -AngleLimitDegrees, AngleLimitDegrees)
	}
	if min > max {
		return fmt.Errorf("angle filter minimum %d exceeds maximum %d", min, max)
	}

	resp, err := s.transaction(protocol.SetInt8Pair(protocol.CmdAngleFilter, int8(min), int8(max)), protocol.CmdAngleFilter)
	if err != nil {
		return err
	}
	gotLo, gotHi, err := protocol.ParseInt8Pair(resp, protocol.CmdAngleFilter)
	if err != nil {
		return err
	}
	if int(gotLo) != min || int(gotHi) != max {
		return fmt.Errorf("sensor reported angle filter %d-%d after setting %d-%d", gotLo, gotHi, min, max)
	}
	return nil
}

// HeightFilter returns the height filter bounds in the configured distance
// unit. Bounds may be negative for detections below the sensor.
func (s *Sensor) HeightFilter() (min, max float64, err error) {
	resp, err := s.transaction(protocol.Request(protocol.CmdHeightFilter), protocol.CmdHeightFilter)
	if err != nil {
		return 0, 0, err
	}
	lo, hi, err := protocol.ParseInt16Pair(resp, protocol.CmdHeightFilter)
	if err != nil {
		return 0, 0, err
	}
	unit := s.Units().Distance
	if min, err = fromMillimetres(unit, int(lo)); err != nil {
		return 0, 0, err
	}
	if max, err = fromMillimetres(unit, int(hi)); err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

// SetHeightFilter limits reported detections to the given height range,
// expressed in the configured distance unit.
func (s *Sensor) SetHeightFilter(min, max float64) error {
	unit := s.Units().Distance
	lo, err := toMillimetres(unit, min)
	if err != nil {
		return err
	}
	hi, err := toMillimetres(unit, max)
	if err != nil {
		return err
	}
	if lo < math.MinInt16 || hi > math.MaxInt16 {
		return fmt.Errorf("height filter %d-%dmm out of range", lo, hi)
	}
	if lo > hi {
		return fmt.Errorf("height filter minimum %dmm exceeds maximum %dmm", lo, hi)
	}

	resp, err := s.transaction(protocol.SetInt16Pair(protocol.CmdHeightFilter, int16(lo), int16(hi)), protocol.CmdHeightFilter)
	if err != nil {
		return err
	}
	gotLo, gotHi, err := protocol.ParseInt16Pair(resp, protocol.CmdHeightFilter)
	if err != nil {
		return err
	}
	if int(gotLo) != lo || int(gotHi) != hi {
		return fmt.Errorf("sensor reported height filter %d-%dmm after setting %d-%dmm", gotLo, gotHi, lo, hi)
	}
	return nil
}

// MovingFilter returns whether stationary returns are suppressed.
func (s *Sensor) MovingFilter() (MovingFilter, error) {
	v, err := s.getByte(protocol.CmdMovingFilter)
	return MovingFilter(v), err
}

// SetMovingFilter controls whether stationary returns are reported.
func (s *Sensor) SetMovingFilter(f MovingFilter) error {
	if !f.Valid() {
		return fmt.Errorf("invalid moving filter %d", f)
	}
	return s.setByte(protocol.CmdMovingFilter, byte(f))
}

// PointDensity returns the point cloud density setting.
func (s *Sensor) PointDensity() (Density, error) {
	v, err := s.getByte(protocol.CmdPointDensity)
	return Density(v), err
}

// SetPointDensity controls how many points the point cloud pipeline emits.
func (s *Sensor) SetPointDensity(d Density) error {
	if !d.Valid() {
		return fmt.Errorf("invalid point density %d", d)
	}
	return s.setByte(protocol.CmdPointDensity, byte(d))
}

// Sensitivity returns the detection sensitivity level.
func (s *Sensor) Sensitivity() (int, error) {
	v, err := s.getByte(protocol.CmdSensitivity)
	return int(v), err
}

// SetSensitivity sets the detection sensitivity level (0 to 9). Higher
// levels report weaker returns at the cost of more noise.
func (s *Sensor) SetSensitivity(level int) error {
	if level < 0 || level > MaxSensitivity {
		return fmt.Errorf("sensitivity %d out of range 0-%d", level, MaxSensitivity)
	}
	return s.setByte(protocol.CmdSensitivity, byte(level))
}

// ObjectTypeMode returns the object classifier tuning.
func (s *Sensor) ObjectTypeMode() (ObjectType, error) {
	v, err := s.getByte(protocol.CmdObjectTypeMode)
	return ObjectType(v), err
}

// SetObjectTypeMode tunes the object tracking classifier for an expected
// target class.
func (s *Sensor) SetObjectTypeMode(o ObjectType) error {
	if !o.Valid() {
		return fmt.Errorf("invalid object type %d", o)
	}
	return s.setByte(protocol.CmdObjectTypeMode, byte(o))
}

// AutoStart reports whether the sensor begins capturing on power-on.
func (s *Sensor) AutoStart() (bool, error) {
	v, err := s.getByte(protocol.CmdAutoStart)
	return v != 0, err
}

// SetAutoStart controls whether the sensor begins capturing on power-on.
func (s *Sensor) SetAutoStart(enabled bool) error {
	var v byte
	if enabled {
		v = 1
	}
	return s.setByte(protocol.CmdAutoStart, v)
}

// Save persists the current settings to the sensor's flash so they survive
// a power cycle.
func (s *Sensor) Save() error {
	resp, err := s.transaction(protocol.Set(protocol.CmdSave), protocol.CmdSave)
	if err != nil {
		return err
	}
	return protocol.ParseAck(resp, protocol.CmdSave)
}

// SceneCalibrate runs the near-field scene calibration. The scene in front
// of the sensor must be empty while this runs. Call Save afterwards to
// persist the result.
func (s *Sensor) SceneCalibrate() error {
	resp, err := s.transaction(protocol.Set(protocol.CmdSceneCalibration), protocol.CmdSceneCalibration)
	if err != nil {
		return err
	}
	return protocol.ParseAck(resp, protocol.CmdSceneCalibration)
}
