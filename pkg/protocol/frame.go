package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 5

	// MaxPayloadSize is the largest accepted payload (1MB).
	MaxPayloadSize = 1 << 20
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameHello       FrameType = 0x00 // Renderer announces itself
	FrameCommand     FrameType = 0x01 // Session → renderer command
	FrameQuery       FrameType = 0x02 // Session → renderer lookup by id
	FrameQueryResult FrameType = 0x03 // Renderer → session lookup answer
	FrameEvent       FrameType = 0x04 // Renderer → session user event
	FrameTitle       FrameType = 0x05 // Session → renderer document title
	FrameError       FrameType = 0x06 // Error message

	frameTypeCount = 0x07
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameCommand:
		return "Command"
	case FrameQuery:
		return "Query"
	case FrameQueryResult:
		return "QueryResult"
	case FrameEvent:
		return "Event"
	case FrameTitle:
		return "Title"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is a typed payload.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// NewFrame creates a frame.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode returns the header followed by the payload.
func (f *Frame) Encode() []byte {
	e := &Encoder{buf: make([]byte, 0, FrameHeaderSize+len(f.Payload))}
	e.WriteByte(byte(f.Type))
	e.WriteUint32(uint32(len(f.Payload)))
	e.WriteBytes(f.Payload)
	return e.Bytes()
}

// DecodeFrame decodes exactly one frame. Unknown types, short input, extra
// bytes and oversized payloads are B601 errors.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	t, err := d.ReadByte()
	if err != nil {
		return nil, malformed("frame header", err)
	}
	if t >= frameTypeCount {
		return nil, malformed("frame header", fmt.Errorf("%w: 0x%02x", ErrInvalidFrameType, t))
	}
	length, err := d.ReadUint32()
	if err != nil {
		return nil, malformed("frame header", err)
	}
	if length > MaxPayloadSize {
		return nil, malformed("frame header", ErrFrameTooLarge)
	}
	if int(length) > d.Remaining() {
		return nil, malformed("frame payload", io.ErrUnexpectedEOF)
	}
	if int(length) < d.Remaining() {
		return nil, malformed("frame payload", ErrTrailingBytes)
	}
	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:])
	return &Frame{Type: FrameType(t), Payload: payload}, nil
}
