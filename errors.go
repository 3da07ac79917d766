// Package pldm implements a PLDM platform responder: a Request/Response
// Correlator, per-endpoint Event Poller, PDR Repository, BIOS Attribute
// Registry, and Platform Event Dispatcher, tied together by Responder.
package pldm

import (
	"errors"

	"github.com/obmc-pldm/pldm/internal/errs"
	"github.com/obmc-pldm/pldm/internal/wire"
)

// Code is one of the abstract error kinds a Responder operation can
// fail with.
type Code = errs.Code

// Error codes, re-exported from internal/errs so callers never need to
// import that package directly.
const (
	CodeInvalidLength       = errs.CodeInvalidLength
	CodeInvalidData         = errs.CodeInvalidData
	CodeNotReady            = errs.CodeNotReady
	CodeInvalidRecordHandle = errs.CodeInvalidRecordHandle
	CodeNoFreeSlot          = errs.CodeNoFreeSlot
	CodeSendFailed          = errs.CodeSendFailed
	CodeDecodeFailed        = errs.CodeDecodeFailed
	CodeTimeout             = errs.CodeTimeout
	CodeDuplicate           = errs.CodeDuplicate
	CodeFull                = errs.CodeFull
	CodeChecksumMismatch    = errs.CodeChecksumMismatch
	CodeHandlerMissing      = errs.CodeHandlerMissing
	CodeInternalFailure     = errs.CodeInternalFailure
)

// Error is the structured error every Responder operation returns
// instead of an ad hoc fmt.Errorf string.
type Error = errs.Error

// NewError constructs an *Error.
func NewError(op string, code Code, msg string) *Error {
	return errs.New(op, code, msg)
}

// WrapError constructs an *Error that carries inner as its cause.
func WrapError(op string, code Code, inner error) *Error {
	return errs.Wrap(op, code, inner)
}

// CodeOf extracts the Code from err, defaulting to CodeInternalFailure
// if err is not (and does not wrap) an *Error.
func CodeOf(err error) Code {
	return errs.CodeOf(err)
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// ErrEndpointNotFound is returned by RemoveEndpoint/EnqueueCriticalEvent
// when the given EID has no active poller.
var ErrEndpointNotFound = errs.New("Responder", errs.CodeNotReady, "no active endpoint for this eid")

// ErrEndpointExists is returned by AddEndpoint when the given EID
// already has an active poller.
var ErrEndpointExists = errs.New("Responder", errs.CodeDuplicate, "endpoint already added")

// CompletionCodeFor maps a Code onto the wire completion code a command
// handler should respond with, per spec.md §7.
func CompletionCodeFor(code Code) uint8 {
	switch code {
	case CodeInvalidLength:
		return wire.CcInvalidLength
	case CodeInvalidData, CodeDecodeFailed, CodeChecksumMismatch:
		return wire.CcInvalidData
	case CodeNotReady, CodeHandlerMissing:
		return wire.CcNotReady
	case CodeInvalidRecordHandle:
		return wire.CcInvalidRecordHandle
	default:
		return wire.CcError
	}
}
