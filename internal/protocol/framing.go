// Package protocol implements the binary serial protocol spoken by the
// RadarIQ-M1 sensor: packet framing with byte stuffing and a CRC-16
// trailer, plus typed builders and parsers for every documented command.
//
// Framing on the wire is
//
//	HEAD payload... crc16(lo,hi) FOOT
//
// where any header, footer, or escape byte inside the payload or CRC is
// replaced by the escape byte followed by the original byte XORed with
// 0x04. An encoded packet never exceeds 255 bytes.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// Framing bytes.
const (
	Header byte = 0xB0
	Footer byte = 0xB1
	Escape byte = 0xB2
	escXOR byte = 0x04
)

// MaxEncodedLen is the maximum length of an encoded packet on the wire.
const MaxEncodedLen = 255

var (
	ErrBadFrame    = errors.New("packet is not delimited by header and footer bytes")
	ErrBadCRC      = errors.New("packet failed CRC check")
	ErrShortPacket = errors.New("packet too short to carry a CRC")
	ErrTooLong     = fmt.Errorf("encoded packet exceeds %d bytes", MaxEncodedLen)
)

// CRC16 computes the CRC-16/CCITT (0xFFFF seed) checksum the sensor uses,
// with the result bytes swapped to match the device's on-wire order.
func CRC16(data []byte) uint16 {
	msb := 0xff
	lsb := 0xff
	for _, c := range data {
		x := int(c) ^ msb
		x ^= x >> 4
		msb = (lsb ^ (x >> 3) ^ (x << 4)) & 0xff
		lsb = (x ^ (x << 5)) & 0xff
	}
	return uint16(lsb<<8 | msb)
}

// Encode frames a payload for transmission: the CRC is appended, framing
// bytes inside the body are escaped, and the result is wrapped in header
// and footer bytes.
func Encode(payload []byte) ([]byte, error) {
	crc := CRC16(payload)
	body := make([]byte, 0, len(payload)+2)
	body = append(body, payload...)
	body = append(body, byte(crc&0xff), byte(crc>>8))

	dst := make([]byte, 0, len(body)+4)
	dst = append(dst, Header)
	for _, b := range body {
		switch b {
		case Header, Footer, Escape:
			dst = append(dst, Escape, b^escXOR)
		default:
			dst = append(dst, b)
		}
	}
	dst = append(dst, Footer)

	if len(dst) > MaxEncodedLen {
		return nil, ErrTooLong
	}
	return dst, nil
}

// Decode unwraps a framed packet: the header and footer are stripped,
// escape sequences are reversed, and the trailing CRC is verified and
// removed. The returned slice is the raw command payload.
func Decode(src []byte) ([]byte, error) {
	if len(src) < 2 || src[0] != Header || src[len(src)-1] != Footer {
		return nil, ErrBadFrame
	}

	body := make([]byte, 0, len(src)-2)
	for i := 1; i < len(src)-1; i++ {
		switch src[i] {
		case Header:
			// A stray header byte restarts the frame on the device side;
			// here it simply carries no data.
		case Escape:
			i++
			if i >= len(src)-1 {
				return nil, ErrBadFrame
			}
			body = append(body, src[i]^escXOR)
		default:
			body = append(body, src[i])
		}
	}

	if len(body) < 2 {
		return nil, ErrShortPacket
	}
	payload := body[:len(body)-2]
	rxCRC := uint16(body[len(body)-2]) | uint16(body[len(body)-1])<<8
	if CRC16(payload) != rxCRC {
		return nil, fmt.Errorf("%w: %x", ErrBadCRC, src)
	}
	return payload, nil
}

// ScanPackets is a bufio.SplitFunc that tokenizes a raw serial stream into
// framed packets. It searches for a footer byte and emits everything from
// the most recent header byte through the footer; bytes before the header
// are discarded as line noise.
func ScanPackets(data []byte, atEOF bool) (advance int, token []byte, err error) {
	foot := bytes.IndexByte(data, Footer)
	if foot < 0 {
		if atEOF {
			// Trailing partial frame at stream end: discard.
			return len(data), nil, nil
		}
		return 0, nil, nil
	}

	start := bytes.LastIndexByte(data[:foot], Header)
	if start < 0 {
		// Footer with no preceding header: noise, skip past it.
		return foot + 1, nil, nil
	}
	return foot + 1, data[start : foot+1], nil
}
