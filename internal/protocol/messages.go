package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var ErrTruncated = errors.New("payload truncated")

// ErrWrongCommand is returned when a payload does not carry the expected
// command/variant header.
type ErrWrongCommand struct {
	Want Command
	Got  Command
}

func (e *ErrWrongCommand) Error() string {
	return fmt.Sprintf("expected %s response, got %s", e.Want, e.Got)
}

// Request builds a read request payload for the given command.
func Request(cmd Command) []byte {
	return []byte{byte(cmd), byte(VariantRequest)}
}

// SetByte builds a set payload carrying a single byte value.
func SetByte(cmd Command, v byte) []byte {
	return []byte{byte(cmd), byte(VariantSet), v}
}

// Set builds a set payload with no arguments (save, scene calibration).
func Set(cmd Command) []byte {
	return []byte{byte(cmd), byte(VariantSet)}
}

// SetUint16Pair builds a set payload carrying two little-endian uint16
// values (distance filter bounds in millimetres).
func SetUint16Pair(cmd Command, min, max uint16) []byte {
	p := make([]byte, 6)
	p[0] = byte(cmd)
	p[1] = byte(VariantSet)
	binary.LittleEndian.PutUint16(p[2:], min)
	binary.LittleEndian.PutUint16(p[4:], max)
	return p
}

// SetInt16Pair builds a set payload carrying two little-endian int16
// values (height filter bounds in millimetres).
func SetInt16Pair(cmd Command, min, max int16) []byte {
	return SetUint16Pair(cmd, uint16(min), uint16(max))
}

// SetInt8Pair builds a set payload carrying two signed byte values
// (angle filter bounds in degrees).
func SetInt8Pair(cmd Command, min, max int8) []byte {
	return []byte{byte(cmd), byte(VariantSet), byte(min), byte(max)}
}

// CaptureStart builds the start-capture payload. samples is the number of
// frames to capture; zero means continuous.
func CaptureStart(samples byte) []byte {
	return []byte{byte(CmdCaptureStart), byte(VariantRequest), samples}
}

// CaptureStop builds the stop-capture payload.
func CaptureStop() []byte {
	return []byte{byte(CmdCaptureStop), byte(VariantRequest)}
}

// checkHeader validates the two-byte command/variant prefix of a response
// payload.
func checkHeader(payload []byte, cmd Command) error {
	if len(payload) < 2 {
		return ErrTruncated
	}
	if Command(payload[0]) != cmd {
		return &ErrWrongCommand{Want: cmd, Got: Command(payload[0])}
	}
	if Variant(payload[1]) != VariantResponse {
		return fmt.Errorf("unexpected variant 0x%02x for %s response", payload[1], cmd)
	}
	return nil
}

// IsResponse reports whether the payload is a response for the given
// command.
func IsResponse(payload []byte, cmd Command) bool {
	return len(payload) >= 2 && Command(payload[0]) == cmd && Variant(payload[1]) == VariantResponse
}

// IsDataPacket reports whether the payload carries streamed capture data
// or statistics rather than a command response.
func IsDataPacket(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	switch Command(payload[0]) {
	case CmdPointCloudData, CmdObjectData, CmdCoreStats, CmdPointCloudStats:
		return Variant(payload[1]) == VariantResponse
	}
	return false
}

// Version holds a semantic firmware or hardware version.
type Version struct {
	Major uint8  `json:"major"`
	Minor uint8  `json:"minor"`
	Build uint16 `json:"build"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// VersionInfo is the response to a version request.
type VersionInfo struct {
	Firmware Version `json:"firmware"`
	Hardware Version `json:"hardware"`
}

// ParseVersion decodes a version response payload.
func ParseVersion(payload []byte) (VersionInfo, error) {
	if err := checkHeader(payload, CmdVersion); err != nil {
		return VersionInfo{}, err
	}
	if len(payload) < 10 {
		return VersionInfo{}, ErrTruncated
	}
	return VersionInfo{
		Firmware: Version{
			Major: payload[2],
			Minor: payload[3],
			Build: binary.LittleEndian.Uint16(payload[4:]),
		},
		Hardware: Version{
			Major: payload[6],
			Minor: payload[7],
			Build: binary.LittleEndian.Uint16(payload[8:]),
		},
	}, nil
}

// ApplicationVersion is one radar application slot reported by the
// controller.
type ApplicationVersion struct {
	Slot  uint8   `json:"slot"`
	Name  string  `json:"name"`
	Build Version `json:"build"`
}

// ParseApplicationVersion decodes a single application-version response.
// The name field is a fixed 20-byte NUL-padded string.
func ParseApplicationVersion(payload []byte) (ApplicationVersion, error) {
	if err := checkHeader(payload, CmdAppVersions); err != nil {
		return ApplicationVersion{}, err
	}
	if len(payload) < 27 {
		return ApplicationVersion{}, ErrTruncated
	}
	return ApplicationVersion{
		Slot: payload[2],
		Name: strings.TrimRight(string(payload[3:23]), "\x00"),
		Build: Version{
			Major: payload[23],
			Minor: payload[24],
			Build: binary.LittleEndian.Uint16(payload[25:]),
		},
	}, nil
}

// AppVersionRequest builds a request for the given application slot
// (1-4).
func AppVersionRequest(slot byte) []byte {
	return []byte{byte(CmdAppVersions), byte(VariantRequest), slot}
}

// ParseSerialNumber decodes a serial number response into the vendor's
// dashed decimal form.
func ParseSerialNumber(payload []byte) (string, error) {
	if err := checkHeader(payload, CmdSerialNumber); err != nil {
		return "", err
	}
	if len(payload) < 10 {
		return "", ErrTruncated
	}
	a := binary.LittleEndian.Uint32(payload[2:])
	b := binary.LittleEndian.Uint32(payload[6:])
	return fmt.Sprintf("%d-%d", a, b), nil
}

// ParseByteResponse decodes a response carrying a single byte value
// (mode, frame rate, density, sensitivity, moving filter, auto start,
// object type mode).
func ParseByteResponse(payload []byte, cmd Command) (byte, error) {
	if err := checkHeader(payload, cmd); err != nil {
		return 0, err
	}
	if len(payload) < 3 {
		return 0, ErrTruncated
	}
	return payload[2], nil
}

// ParseAck decodes a bare acknowledgement response (reset, save).
func ParseAck(payload []byte, cmd Command) error {
	return checkHeader(payload, cmd)
}

// ParseUint16Pair decodes a response carrying two little-endian uint16
// values.
func ParseUint16Pair(payload []byte, cmd Command) (min, max uint16, err error) {
	if err := checkHeader(payload, cmd); err != nil {
		return 0, 0, err
	}
	if len(payload) < 6 {
		return 0, 0, ErrTruncated
	}
	return binary.LittleEndian.Uint16(payload[2:]), binary.LittleEndian.Uint16(payload[4:]), nil
}

// ParseInt16Pair decodes a response carrying two little-endian int16
// values.
func ParseInt16Pair(payload []byte, cmd Command) (min, max int16, err error) {
	umin, umax, err := ParseUint16Pair(payload, cmd)
	return int16(umin), int16(umax), err
}

// ParseInt8Pair decodes a response carrying two signed byte values.
func ParseInt8Pair(payload []byte, cmd Command) (min, max int8, err error) {
	if err := checkHeader(payload, cmd); err != nil {
		return 0, 0, err
	}
	if len(payload) < 4 {
		return 0, 0, ErrTruncated
	}
	return int8(payload[2]), int8(payload[3]), nil
}
