package protocol

import (
	"errors"
	"time"
)

// Wire protocol errors
var (
	// Connection errors

	ErrConnectionClosed = errors.New("connection is closed")
	ErrConnectionLost   = errors.New("connection lost")

	// Message errors

	ErrMessageTooLarge       = errors.New("message too large")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")

	// Transport errors

	ErrTransportNotSupported = errors.New("transport not supported")
	ErrTransportClosed       = errors.New("transport is closed")
	ErrAlreadyListening      = errors.New("transport is already listening")
	ErrNotListening          = errors.New("transport is not listening")
	ErrListenFailed          = errors.New("listen failed")
	ErrDialFailed            = errors.New("dial failed")
)

// ErrorCode represents a numeric error code for efficient error handling
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	// Connection error codes (1000-1999)

	ErrorCodeConnectionClosed ErrorCode = 1001
	ErrorCodeConnectionLost   ErrorCode = 1002

	// Message error codes (3000-3999)

	ErrorCodeMessageTooLarge       ErrorCode = 3001
	ErrorCodeInvalidMessage        ErrorCode = 3002
	ErrorCodeSerializationFailed   ErrorCode = 3003
	ErrorCodeDeserializationFailed ErrorCode = 3004

	// Transport error codes (7000-7999)

	ErrorCodeTransportNotSupported ErrorCode = 7001
	ErrorCodeTransportClosed       ErrorCode = 7002
	ErrorCodeAlreadyListening      ErrorCode = 7003
	ErrorCodeNotListening          ErrorCode = 7004
	ErrorCodeListenFailed          ErrorCode = 7005
	ErrorCodeDialFailed            ErrorCode = 7006

	ErrorCodeUnknownError ErrorCode = 9999
)

// Error is a wire protocol error with a stable code for matching across the
// feed boundary.
type Error struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Timestamp int64
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a protocol error with the given code.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().Unix(),
	}
}

var errorCodeMap = map[error]ErrorCode{
	ErrConnectionClosed:      ErrorCodeConnectionClosed,
	ErrConnectionLost:        ErrorCodeConnectionLost,
	ErrMessageTooLarge:       ErrorCodeMessageTooLarge,
	ErrInvalidMessage:        ErrorCodeInvalidMessage,
	ErrSerializationFailed:   ErrorCodeSerializationFailed,
	ErrDeserializationFailed: ErrorCodeDeserializationFailed,
	ErrTransportNotSupported: ErrorCodeTransportNotSupported,
	ErrTransportClosed:       ErrorCodeTransportClosed,
	ErrAlreadyListening:      ErrorCodeAlreadyListening,
	ErrNotListening:          ErrorCodeNotListening,
	ErrListenFailed:          ErrorCodeListenFailed,
	ErrDialFailed:            ErrorCodeDialFailed,
}

// GetErrorCode returns the error code for a given error
func GetErrorCode(err error) ErrorCode {
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}
	return ErrorCodeUnknownError
}

// WrapError wraps a standard error into a protocol Error
func WrapError(err error, message string) *Error {
	return NewError(GetErrorCode(err), message, err)
}
