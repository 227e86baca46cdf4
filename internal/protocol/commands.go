package protocol

// Command identifies the sensor operation a packet carries. It is always
// the first byte of a decoded payload.
type Command byte

// Command bytes understood by the sensor.
const (
	CmdMessage          Command = 0x00 // diagnostic text from the sensor
	CmdVersion          Command = 0x01 // firmware and hardware version
	CmdSerialNumber     Command = 0x02 // device serial number
	CmdReset            Command = 0x03 // reboot or factory reset
	CmdFrameRate        Command = 0x04 // capture frame rate (fps)
	CmdMode             Command = 0x05 // point cloud vs object tracking
	CmdDistanceFilter   Command = 0x06 // min/max distance (mm)
	CmdAngleFilter      Command = 0x07 // min/max azimuth angle (deg)
	CmdMovingFilter     Command = 0x08 // moving objects only vs all
	CmdSave             Command = 0x09 // persist settings to flash
	CmdPointDensity     Command = 0x10 // point cloud density
	CmdSensitivity      Command = 0x11 // detection sensitivity 0-9
	CmdHeightFilter     Command = 0x12 // min/max height (mm)
	CmdAppVersions      Command = 0x14 // radar application slot versions
	CmdSceneCalibration Command = 0x15 // near-field scene calibration
	CmdObjectTypeMode   Command = 0x16 // object classifier tuning
	CmdAutoStart        Command = 0x17 // start capture on power-on
	CmdCaptureStart     Command = 0x64 // begin streaming data frames
	CmdCaptureStop      Command = 0x65 // stop streaming data frames
	CmdPointCloudData   Command = 0x66 // point cloud subframe
	CmdObjectData       Command = 0x67 // tracked object subframe
	CmdCoreStats        Command = 0x68 // core performance statistics
	CmdPointCloudStats  Command = 0x70 // point cloud pipeline statistics
)

// Variant is the second byte of every payload and distinguishes requests,
// responses, and set operations sharing the same command byte.
type Variant byte

const (
	VariantRequest  Variant = 0x00
	VariantResponse Variant = 0x01
	VariantSet      Variant = 0x02
)

// SubframeType marks the position of a data subframe within a frame. A
// frame is complete when the end marker arrives.
type SubframeType byte

const (
	SubframeStart  SubframeType = 0x00
	SubframeMiddle SubframeType = 0x01
	SubframeEnd    SubframeType = 0x02
)

// String returns a short human-readable name for the command, used in log
// lines and error messages.
func (c Command) String() string {
	switch c {
	case CmdMessage:
		return "message"
	case CmdVersion:
		return "version"
	case CmdSerialNumber:
		return "serial-number"
	case CmdReset:
		return "reset"
	case CmdFrameRate:
		return "frame-rate"
	case CmdMode:
		return "mode"
	case CmdDistanceFilter:
		return "distance-filter"
	case CmdAngleFilter:
		return "angle-filter"
	case CmdMovingFilter:
		return "moving-filter"
	case CmdSave:
		return "save"
	case CmdPointDensity:
		return "point-density"
	case CmdSensitivity:
		return "sensitivity"
	case CmdHeightFilter:
		return "height-filter"
	case CmdAppVersions:
		return "app-versions"
	case CmdSceneCalibration:
		return "scene-calibration"
	case CmdObjectTypeMode:
		return "object-type-mode"
	case CmdAutoStart:
		return "auto-start"
	case CmdCaptureStart:
		return "capture-start"
	case CmdCaptureStop:
		return "capture-stop"
	case CmdPointCloudData:
		return "point-cloud-data"
	case CmdObjectData:
		return "object-data"
	case CmdCoreStats:
		return "core-stats"
	case CmdPointCloudStats:
		return "point-cloud-stats"
	default:
		return "unknown"
	}
}
