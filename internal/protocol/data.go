package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Point is a single point cloud detection in raw sensor units
// (millimetres and millimetres per second).
type Point struct {
	X         int16
	Y         int16
	Z         int16
	Intensity uint8
	Velocity  int16
}

const pointSize = 9

// Object is a single tracked object in raw sensor units.
type Object struct {
	TrackingID int8
	XPos       int16
	YPos       int16
	ZPos       int16
	XVel       int16
	YVel       int16
	ZVel       int16
	XAcc       int16
	YAcc       int16
	ZAcc       int16
}

const objectSize = 19

// PointCloudSubframe is one decoded point cloud data packet. A full frame
// spans one or more subframes terminated by SubframeEnd.
type PointCloudSubframe struct {
	Type   SubframeType
	Points []Point
}

// ParsePointCloud decodes a point cloud data payload.
func ParsePointCloud(payload []byte) (*PointCloudSubframe, error) {
	if err := checkHeader(payload, CmdPointCloudData); err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, ErrTruncated
	}
	count := int(payload[3])
	body := payload[4:]
	if len(body) < count*pointSize {
		return nil, fmt.Errorf("%w: %d points declared, %d bytes present", ErrTruncated, count, len(body))
	}

	sub := &PointCloudSubframe{
		Type:   SubframeType(payload[2]),
		Points: make([]Point, count),
	}
	for i := 0; i < count; i++ {
		row := body[i*pointSize:]
		sub.Points[i] = Point{
			X:         int16(binary.LittleEndian.Uint16(row[0:])),
			Y:         int16(binary.LittleEndian.Uint16(row[2:])),
			Z:         int16(binary.LittleEndian.Uint16(row[4:])),
			Intensity: row[6],
			Velocity:  int16(binary.LittleEndian.Uint16(row[7:])),
		}
	}
	return sub, nil
}

// ObjectSubframe is one decoded object tracking data packet.
type ObjectSubframe struct {
	Type    SubframeType
	Objects []Object
}

// ParseObjects decodes an object tracking data payload.
func ParseObjects(payload []byte) (*ObjectSubframe, error) {
	if err := checkHeader(payload, CmdObjectData); err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, ErrTruncated
	}
	count := int(payload[3])
	body := payload[4:]
	if len(body) < count*objectSize {
		return nil, fmt.Errorf("%w: %d objects declared, %d bytes present", ErrTruncated, count, len(body))
	}

	sub := &ObjectSubframe{
		Type:    SubframeType(payload[2]),
		Objects: make([]Object, count),
	}
	for i := 0; i < count; i++ {
		row := body[i*objectSize:]
		i16 := func(off int) int16 { return int16(binary.LittleEndian.Uint16(row[off:])) }
		sub.Objects[i] = Object{
			TrackingID: int8(row[0]),
			XPos:       i16(1),
			YPos:       i16(3),
			ZPos:       i16(5),
			XVel:       i16(7),
			YVel:       i16(9),
			ZVel:       i16(11),
			XAcc:       i16(13),
			YAcc:       i16(15),
			ZAcc:       i16(17),
		}
	}
	return sub, nil
}

// MessageLevel classifies diagnostic messages emitted by the sensor.
type MessageLevel int

const (
	LevelDebug MessageLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l MessageLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is a diagnostic text packet from the sensor.
type Message struct {
	Level MessageLevel
	Code  uint8
	Text  string
}

// ParseMessage decodes a diagnostic message payload. Message types 0 and 1
// map to debug, 2 and 5 to info, 3 to warning, and 4 to error.
func ParseMessage(payload []byte) (Message, error) {
	if len(payload) < 4 {
		return Message{}, ErrTruncated
	}
	if Command(payload[0]) != CmdMessage || Variant(payload[1]) != VariantResponse {
		return Message{}, &ErrWrongCommand{Want: CmdMessage, Got: Command(payload[0])}
	}

	var level MessageLevel
	switch payload[2] {
	case 0, 1:
		level = LevelDebug
	case 2, 5:
		level = LevelInfo
	case 3:
		level = LevelWarning
	case 4:
		level = LevelError
	default:
		level = LevelInfo
	}

	return Message{
		Level: level,
		Code:  payload[3],
		Text:  strings.TrimRight(string(payload[4:]), "\x00"),
	}, nil
}

// CoreStats are the sensor's core performance counters, reported while a
// capture is running.
type CoreStats struct {
	ActiveFrameCPU        uint32 `json:"active_frame_cpu"`
	InterFrameCPU         uint32 `json:"inter_frame_cpu"`
	InterFrameProcTime    uint32 `json:"inter_frame_proc_time"`
	TransmitOutputTime    uint32 `json:"transmit_output_time"`
	InterFrameProcMargin  uint32 `json:"inter_frame_proc_margin"`
	InterChirpProcMargin  uint32 `json:"inter_chirp_proc_margin"`
	PacketTransmitTime    uint32 `json:"packet_transmit_time"`
	TempSensor0           int16  `json:"temperature_sensor_0"`
	TempSensor1           int16  `json:"temperature_sensor_1"`
	TempPowerManagement   int16  `json:"temperature_power_management"`
	TempRx0               int16  `json:"temperature_rx_0"`
	TempRx1               int16  `json:"temperature_rx_1"`
	TempRx2               int16  `json:"temperature_rx_2"`
	TempRx3               int16  `json:"temperature_rx_3"`
	TempTx0               int16  `json:"temperature_tx_0"`
	TempTx1               int16  `json:"temperature_tx_1"`
	TempTx2               int16  `json:"temperature_tx_2"`
}

// ParseCoreStats decodes a core statistics payload.
func ParseCoreStats(payload []byte) (CoreStats, error) {
	if len(payload) < 2+7*4+10*2 {
		return CoreStats{}, ErrTruncated
	}
	if Command(payload[0]) != CmdCoreStats {
		return CoreStats{}, &ErrWrongCommand{Want: CmdCoreStats, Got: Command(payload[0])}
	}

	body := payload[2:]
	u32 := func(i int) uint32 { return binary.LittleEndian.Uint32(body[i*4:]) }
	i16 := func(i int) int16 { return int16(binary.LittleEndian.Uint16(body[28+i*2:])) }

	return CoreStats{
		ActiveFrameCPU:       u32(0),
		InterFrameCPU:        u32(1),
		InterFrameProcTime:   u32(2),
		TransmitOutputTime:   u32(3),
		InterFrameProcMargin: u32(4),
		InterChirpProcMargin: u32(5),
		PacketTransmitTime:   u32(6),
		TempSensor0:          i16(0),
		TempSensor1:          i16(1),
		TempPowerManagement:  i16(2),
		TempRx0:              i16(3),
		TempRx1:              i16(4),
		TempRx2:              i16(5),
		TempRx3:              i16(6),
		TempTx0:              i16(7),
		TempTx1:              i16(8),
		TempTx2:              i16(9),
	}, nil
}

// PointCloudStats are the point cloud pipeline counters, reported while a
// point cloud capture is running.
type PointCloudStats struct {
	PointsAggregationTime uint32 `json:"points_aggregation_time"`
	IntensitySortTime     uint32 `json:"intensity_sort_time"`
	NearestNeighboursTime uint32 `json:"nearest_neighbours_time"`
	UARTTransmissionTime  uint32 `json:"uart_transmission_time"`
	FilterPointsRemoved   uint32 `json:"filter_points_removed"`
	NumTransmittedPoints  uint32 `json:"num_transmitted_points"`
	InputPointsTruncated  bool   `json:"input_points_truncated"`
	OutputPointsTruncated bool   `json:"output_points_truncated"`
}

// ParsePointCloudStats decodes a point cloud statistics payload.
func ParsePointCloudStats(payload []byte) (PointCloudStats, error) {
	if len(payload) < 2+6*4+2 {
		return PointCloudStats{}, ErrTruncated
	}
	if Command(payload[0]) != CmdPointCloudStats {
		return PointCloudStats{}, &ErrWrongCommand{Want: CmdPointCloudStats, Got: Command(payload[0])}
	}

	body := payload[2:]
	u32 := func(i int) uint32 { return binary.LittleEndian.Uint32(body[i*4:]) }

	return PointCloudStats{
		PointsAggregationTime: u32(0),
		IntensitySortTime:     u32(1),
		NearestNeighboursTime: u32(2),
		UARTTransmissionTime:  u32(3),
		FilterPointsRemoved:   u32(4),
		NumTransmittedPoints:  u32(5),
		InputPointsTruncated:  body[24] != 0,
		OutputPointsTruncated: body[25] != 0,
	}, nil
}
