package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")
)

// UpstreamError carries a vendor rejection verbatim.
type UpstreamError struct {
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("vendor rejected request (code %d): %s", e.Code, e.Message)
}

// DownloadError marks a terminal vendor success whose asset retrieval
// failed. The remote URL is preserved so callers can degrade to it.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download asset %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
