package errors

import "fmt"

// ErrorCode represents a snapstrip error code.
type ErrorCode string

const (
	ErrCaptureFailed   ErrorCode = "CAPTURE_FAILED"   // 502: frame source unreachable or read timed out
	ErrDetectionFailed ErrorCode = "DETECTION_FAILED" // 502: person classifier call failed
	ErrScoringFailed   ErrorCode = "SCORING_FAILED"   // 502: aesthetic scorer call failed
	ErrStyleFailed     ErrorCode = "STYLE_FAILED"     // 502: style transfer call failed
	ErrUploadFailed    ErrorCode = "UPLOAD_FAILED"    // 502: image hosting rejected the upload
	ErrPushFailed      ErrorCode = "PUSH_FAILED"      // 502: messaging provider rejected the push
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrInvalidConfig   ErrorCode = "INVALID_CONFIG"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// PipeError represents a structured error with code, status, and details.
// Stage errors (capture/detection/scoring/style/upload/push) describe a single
// external call's failure for a single tick and are never fatal to the process.
type PipeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *PipeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (e *PipeError) Unwrap() error {
	return e.Cause
}

func stageError(code ErrorCode, stage string, err error) *PipeError {
	msg := stage + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", stage, err)
	}
	return &PipeError{
		Code:    code,
		Status:  502,
		Message: msg,
		Cause:   err,
	}
}

// NewCaptureFailed wraps a frame-source failure.
func NewCaptureFailed(err error) *PipeError {
	return stageError(ErrCaptureFailed, "capture", err)
}

// NewDetectionFailed wraps a person-classifier failure.
func NewDetectionFailed(err error) *PipeError {
	return stageError(ErrDetectionFailed, "person detection", err)
}

// NewScoringFailed wraps an aesthetic-scorer failure.
func NewScoringFailed(err error) *PipeError {
	return stageError(ErrScoringFailed, "aesthetic scoring", err)
}

// NewStyleFailed wraps a style-transfer failure.
func NewStyleFailed(err error) *PipeError {
	return stageError(ErrStyleFailed, "style transfer", err)
}

// NewUploadFailed wraps an image-hosting failure.
func NewUploadFailed(err error) *PipeError {
	return stageError(ErrUploadFailed, "image upload", err)
}

// NewPushFailed wraps a messaging-provider failure.
func NewPushFailed(err error) *PipeError {
	return stageError(ErrPushFailed, "push", err)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PipeError {
	return &PipeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidConfig creates a 400 error for configuration problems.
func NewInvalidConfig(msg string) *PipeError {
	return &PipeError{
		Code:    ErrInvalidConfig,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing entry, day, or strip.
func NewNotFound(identifier string) *PipeError {
	return &PipeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PipeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PipeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is a PipeError with the given code.
func Is(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PipeError); ok {
		return pErr.Code == code
	}
	return false
}
