// Package errs holds the responder's error taxonomy, shared by every
// internal package and re-exported at the top level so callers never
// need to import this package directly.
package errs

import "fmt"

// Code is one of the abstract error kinds named in spec.md §7.
type Code string

const (
	CodeInvalidLength       Code = "invalid_length"
	CodeInvalidData         Code = "invalid_data"
	CodeNotReady            Code = "not_ready"
	CodeInvalidRecordHandle Code = "invalid_record_handle"
	CodeNoFreeSlot          Code = "no_free_slot"
	CodeSendFailed          Code = "send_failed"
	CodeDecodeFailed        Code = "decode_failed"
	CodeTimeout             Code = "timeout"
	CodeDuplicate           Code = "duplicate"
	CodeFull                Code = "full"
	CodeChecksumMismatch    Code = "checksum_mismatch"
	CodeHandlerMissing      Code = "handler_missing"
	CodeInternalFailure     Code = "internal_failure"
)

// Error is the structured error every internal package returns instead
// of an ad hoc fmt.Errorf string, so the top-level package can map Code
// to a PLDM completion code without string matching.
type Error struct {
	Op    string // operation that failed, e.g. "GetPDR", "pollForPlatformEventMessage"
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("pldm: %s: %s: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("pldm: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is reports whether target is an *Error with the same Code, letting
// callers write errors.Is(err, errs.New("", errs.CodeFull, "")).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New constructs an *Error.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap constructs an *Error that carries inner as its cause.
func Wrap(op string, code Code, inner error) *Error {
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error,
// defaulting to CodeInternalFailure otherwise.
func CodeOf(err error) Code {
	var e *Error
	if as(err, &e) {
		return e.Code
	}
	return CodeInternalFailure
}

// as is a tiny errors.As shim kept local to avoid importing errors just
// for this one call site at every use; internal packages that already
// import errors use it directly.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
