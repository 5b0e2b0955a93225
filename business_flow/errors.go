// Package businessflow contains the core business logic for import and link seeding workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignIDRequired    = errors.New("campaign ID is required")
	ErrDuplicateCampaignCode = errors.New("campaign code already in use by another campaign")

	// Import job errors
	ErrUnsupportedInputFormat = errors.New("unsupported input file format")
	ErrNoHeaderRow            = errors.New("input file has no header row")
	ErrNoDataRows             = errors.New("input file has no data rows")
	ErrMissingNameColumn      = errors.New("no business name column recognized in header")

	// Link allocation errors
	ErrLinkIDTaken = errors.New("link ID taken after retry")
	ErrEmptyBase   = errors.New("candidate base is empty after sanitization")
)

// FatalError wraps a run-terminating failure together with the compensation
// work performed before re-raising it, so callers can report what the
// cleanup removed.
type FatalError struct {
	Err            error
	DeletedTargets int64
	DeletedLinks   int64
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

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

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsDuplicateCampaignCode(err error) bool {
	return errors.Is(err, ErrDuplicateCampaignCode)
}

func IsUnsupportedInputFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedInputFormat)
}

func IsMissingNameColumn(err error) bool {
	return errors.Is(err, ErrMissingNameColumn)
}
