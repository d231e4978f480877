package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes used across the crawl pipeline.
const (
	ErrCodeBrowserLaunch = "BROWSER_LAUNCH"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeExtraction    = "EXTRACTION_FAILED"
	ErrCodeCheckpoint    = "CHECKPOINT_FAILED"
	ErrCodeCanceled      = "CANCELED"
	ErrCodeInvalidInput  = "INVALID_INPUT"
)

// CrawlError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}

// Categorize wraps err as a CrawlError. Context cancellation and deadline
// errors become ErrCodeCanceled; everything else gets fallbackCode.
// An err that is already a CrawlError is returned unchanged.
func Categorize(err error, fallbackCode, msg string) *CrawlError {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewCrawlError(ErrCodeCanceled, msg, err)
	default:
		return NewCrawlError(fallbackCode, msg, err)
	}
}

// HasCode reports whether any CrawlError in err's chain carries code.
func HasCode(err error, code string) bool {
	var ce *CrawlError
	for err != nil {
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.Err
	}
	return false
}
