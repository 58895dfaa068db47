package protocol

import (
	"github.com/vango-dev/vbridge/internal/errors"
)

// ErrorCode identifies the type of error.
type ErrorCode uint16

const (
	ErrUnknown      ErrorCode = 0x0000 // Unknown error
	ErrInvalidFrame ErrorCode = 0x0001 // Malformed frame
	ErrVersion      ErrorCode = 0x0002 // Unsupported protocol version
	ErrUnknownKey   ErrorCode = 0x0003 // No element for key
	ErrHostFailure  ErrorCode = 0x0100 // Renderer failed to apply a command
	ErrNoListener   ErrorCode = 0x0101 // Event had no listener
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrVersion:
		return "Version"
	case ErrUnknownKey:
		return "UnknownKey"
	case ErrHostFailure:
		return "HostFailure"
	case ErrNoListener:
		return "NoListener"
	default:
		return "Unknown"
	}
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Code    ErrorCode // Error code
	Key     string    // Element key, if the error concerns one
	Message string    // Human-readable error message
	Fatal   bool      // If true, the connection is closed
}

// NewError creates a non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	s := em.Code.String() + ": " + em.Message
	if em.Key != "" {
		s += " (" + em.Key + ")"
	}
	if em.Fatal {
		return "fatal: " + s
	}
	return s
}

// EncodeErrorMessage encodes an ErrorMessage payload.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Key)
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage payload.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	em := &ErrorMessage{}
	code, err := d.ReadUint16()
	if err != nil {
		return nil, malformed("error", err)
	}
	em.Code = ErrorCode(code)
	if em.Key, err = d.ReadString(); err != nil {
		return nil, malformed("error", err)
	}
	if em.Message, err = d.ReadString(); err != nil {
		return nil, malformed("error", err)
	}
	if em.Fatal, err = d.ReadBool(); err != nil {
		return nil, malformed("error", err)
	}
	if err := d.Finish(); err != nil {
		return nil, malformed("error", err)
	}
	return em, nil
}

// malformed wraps a decoding failure as B601.
func malformed(what string, err error) error {
	return errors.New("B601").WithDetail(what).Wrap(err)
}
