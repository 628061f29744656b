package review

import (
	"errors"
	"fmt"
)

// Error kinds. Every error ProcessReview returns for a valid task wraps
// exactly one of these. A duplicate task is not an error.
var (
	ErrDedupeStore      = errors.New("dedupe store failure")
	ErrDiffFetch        = errors.New("diff fetch failed")
	ErrReviewerCall     = errors.New("reviewer call failed")
	ErrReviewSubmission = errors.New("review submission failed")
	ErrCheckLifecycle   = errors.New("status check failed")
)

// FileError is a reviewer failure for one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrReviewerCall, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *FileError) Unwrap() []error {
	return []error{ErrReviewerCall, e.Err}
}
