// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the acquisition and streaming layers.

package api

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Match with errors.Is.
var (
	ErrConfiguration   = errors.New("configuration rejected")
	ErrResetTimeout    = errors.New("dma reset timeout")
	ErrEngineHalted    = errors.New("dma engine halted")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrWouldBlock      = errors.New("send would block")
	ErrSendStalled     = fmt.Errorf("send stalled: %w", ErrWouldBlock)
	ErrTransportClosed = errors.New("transport is closed")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrNotSupported    = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeConfiguration
	ErrCodeResetTimeout
	ErrCodeEngineHalted
	ErrCodePayloadTooLarge
	ErrCodeWouldBlock
	ErrCodeTransport
	ErrCodeInvalidState
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeConfiguration:
		return "configuration"
	case ErrCodeResetTimeout:
		return "reset_timeout"
	case ErrCodeEngineHalted:
		return "engine_halted"
	case ErrCodePayloadTooLarge:
		return "payload_too_large"
	case ErrCodeWouldBlock:
		return "would_block"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeInvalidState:
		return "invalid_state"
	default:
		return "internal"
	}
}

// sentinel maps a code onto the error kind it belongs to.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeConfiguration:
		return ErrConfiguration
	case ErrCodeResetTimeout:
		return ErrResetTimeout
	case ErrCodeEngineHalted:
		return ErrEngineHalted
	case ErrCodePayloadTooLarge:
		return ErrPayloadTooLarge
	case ErrCodeWouldBlock:
		return ErrWouldBlock
	case ErrCodeInvalidState:
		return ErrInvalidState
	}
	return nil
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the error kind so callers can use errors.Is.
func (e *Error) Unwrap() error {
	return e.Code.sentinel()
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ConfigError is a shorthand for a configuration rejection.
func ConfigError(format string, args ...any) *Error {
	return NewError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *Error in err's chain,
// or a code derived from the sentinel kinds.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return ErrCodeConfiguration
	case errors.Is(err, ErrResetTimeout):
		return ErrCodeResetTimeout
	case errors.Is(err, ErrEngineHalted):
		return ErrCodeEngineHalted
	case errors.Is(err, ErrPayloadTooLarge):
		return ErrCodePayloadTooLarge
	case errors.Is(err, ErrWouldBlock):
		return ErrCodeWouldBlock
	case errors.Is(err, ErrTransportClosed):
		return ErrCodeTransport
	case errors.Is(err, ErrInvalidState):
		return ErrCodeInvalidState
	}
	return ErrCodeInternal
}
