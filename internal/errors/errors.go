// Package errors defines the typed error values used throughout FieldMark.
package errors

import "fmt"

// APIError represents a FieldMark error with a machine-readable code,
// human-readable message, and the HTTP status code used when the error
// surfaces through the HTTP API.
type APIError struct {
	// Code is the machine-readable error code (e.g., "CodeNotFound").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return (e.g., 404, 403).
	HTTPStatus int
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// WithMessage returns a copy of the APIError with the message replaced.
// The original value is left untouched so the sentinels stay comparable
// with errors.Is.
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Is reports whether target is the same APIError sentinel, matching on the
// machine-readable code so WithMessage copies still compare equal.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Pre-defined errors for the identifier and scan subsystem.
var (
	// ErrInvalidCode is returned when a string does not match the canonical
	// location-code shape. Recoverable: a scan session keeps running.
	ErrInvalidCode = &APIError{
		Code:       "InvalidCode",
		Message:    "The supplied value is not a valid location code",
		HTTPStatus: 400,
	}

	// ErrInvalidPrefix is returned when a mint request carries a prefix that
	// is not composed of uppercase letters.
	ErrInvalidPrefix = &APIError{
		Code:       "InvalidPrefix",
		Message:    "Code prefix must be one or more uppercase letters",
		HTTPStatus: 400,
	}

	// ErrCodeNotFound is returned when a well-formed code has no matching
	// location record.
	ErrCodeNotFound = &APIError{
		Code:       "CodeNotFound",
		Message:    "No location is bound to the specified code",
		HTTPStatus: 404,
	}

	// ErrLocationNotFound is returned when the referenced location record
	// does not exist.
	ErrLocationNotFound = &APIError{
		Code:       "LocationNotFound",
		Message:    "The specified location does not exist",
		HTTPStatus: 404,
	}

	// ErrLocationExists is returned when creating a location whose ID is
	// already registered.
	ErrLocationExists = &APIError{
		Code:       "LocationExists",
		Message:    "A location with the specified ID already exists",
		HTTPStatus: 409,
	}

	// ErrGenerationExhausted is returned when minting could not find a free
	// code within the attempt budget. Fatal to that mint call only.
	ErrGenerationExhausted = &APIError{
		Code:       "GenerationExhausted",
		Message:    "Could not generate a unique code within the attempt budget",
		HTTPStatus: 503,
	}

	// ErrBatchTooLarge is returned when a batch mint request exceeds the
	// hard batch ceiling.
	ErrBatchTooLarge = &APIError{
		Code:       "BatchTooLarge",
		Message:    "Batch size exceeds the maximum allowed",
		HTTPStatus: 400,
	}

	// ErrCapturePermission is returned when access to the capture device is
	// denied. Fatal to the scan session; the user can grant access and retry.
	ErrCapturePermission = &APIError{
		Code:       "CapturePermissionDenied",
		Message:    "Access to the capture device was denied",
		HTTPStatus: 403,
	}

	// ErrCaptureNotFound is returned when no capture device is available.
	ErrCaptureNotFound = &APIError{
		Code:       "CaptureDeviceNotFound",
		Message:    "No capture device is available",
		HTTPStatus: 404,
	}

	// ErrCaptureBusy is returned when the capture device is held by another
	// session or process.
	ErrCaptureBusy = &APIError{
		Code:       "CaptureDeviceBusy",
		Message:    "The capture device is in use by another session",
		HTTPStatus: 409,
	}

	// ErrCaptureUnknown is returned for capture failures with no more
	// specific cause.
	ErrCaptureUnknown = &APIError{
		Code:       "CaptureUnknown",
		Message:    "The capture device failed for an unknown reason",
		HTTPStatus: 500,
	}

	// ErrIlluminationUnsupported is returned when the active capture device
	// has no illumination capability. Callers may treat this as ignorable.
	ErrIlluminationUnsupported = &APIError{
		Code:       "IlluminationUnsupported",
		Message:    "The capture device does not support illumination",
		HTTPStatus: 409,
	}

	// ErrSessionNotFound is returned when the referenced scan session does
	// not exist or has already been closed and reaped.
	ErrSessionNotFound = &APIError{
		Code:       "SessionNotFound",
		Message:    "The specified scan session does not exist",
		HTTPStatus: 404,
	}

	// ErrSessionClosed is returned when an operation is attempted on a scan
	// session that has already terminated.
	ErrSessionClosed = &APIError{
		Code:       "SessionClosed",
		Message:    "The scan session has already terminated",
		HTTPStatus: 409,
	}

	// ErrAccessDenied is returned when the caller lacks a valid API token.
	ErrAccessDenied = &APIError{
		Code:       "AccessDenied",
		Message:    "Access Denied",
		HTTPStatus: 403,
	}

	// ErrLabelNotFound is returned when the requested label artifact does
	// not exist in the label archive.
	ErrLabelNotFound = &APIError{
		Code:       "LabelNotFound",
		Message:    "The requested label does not exist",
		HTTPStatus: 404,
	}

	// ErrMalformedRequest is returned when a request body cannot be parsed.
	ErrMalformedRequest = &APIError{
		Code:       "MalformedRequest",
		Message:    "The request body could not be parsed",
		HTTPStatus: 400,
	}

	// ErrInternalError is returned for unexpected internal failures.
	ErrInternalError = &APIError{
		Code:       "InternalError",
		Message:    "We encountered an internal error. Please try again.",
		HTTPStatus: 500,
	}
)
