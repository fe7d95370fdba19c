// Package businessflow contains the core business logic and use cases for the telemetry pipeline
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Access gate errors, each mapping to a distinct user-facing reason
	ErrShareLinkNotFound = errors.New("share link not found")
	ErrShareLinkDisabled = errors.New("share link is disabled")
	ErrShareLinkExpired  = errors.New("share link has expired")
	ErrViewLimitReached  = errors.New("view limit reached")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrEmailRequired     = errors.New("email is required for this link")

	// Telemetry errors
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionShareMismatch = errors.New("session does not belong to share link")
	ErrPageOutOfRange       = errors.New("page number exceeds total pages")

	// Document errors
	ErrDocumentNotFound = errors.New("document not found")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsShareLinkNotFound(err error) bool {
	return errors.Is(err, ErrShareLinkNotFound)
}

func IsShareLinkDisabled(err error) bool {
	return errors.Is(err, ErrShareLinkDisabled)
}

func IsShareLinkExpired(err error) bool {
	return errors.Is(err, ErrShareLinkExpired)
}

func IsViewLimitReached(err error) bool {
	return errors.Is(err, ErrViewLimitReached)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsEmailRequired(err error) bool {
	return errors.Is(err, ErrEmailRequired)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionShareMismatch(err error) bool {
	return errors.Is(err, ErrSessionShareMismatch)
}

func IsPageOutOfRange(err error) bool {
	return errors.Is(err, ErrPageOutOfRange)
}

func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
