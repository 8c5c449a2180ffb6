package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for input/output combinations no engine handles.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrRemoteCompressionFailed covers network and HTTP failures of the remote compressor.
	ErrRemoteCompressionFailed = errors.New("remote compression failed")
	// ErrQuotaExhausted is the 429 case of ErrRemoteCompressionFailed.
	ErrQuotaExhausted = fmt.Errorf("%w: quota exhausted", ErrRemoteCompressionFailed)
	// ErrMetadataInjectionFailed wraps any embedder failure.
	ErrMetadataInjectionFailed = errors.New("failed to inject metadata")
	ErrValidationFailed        = errors.New("validation failed")

	ErrImageBusy  = errors.New("cannot remove an image while it is processing")
	ErrQueueBusy  = errors.New("queue is already processing")
	ErrNotBoosted = errors.New("image has no output yet")
)

// RemoteError is a non-2xx response from the remote compressor.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote compressor returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote compressor returned status %d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteCompressionFailed:
		return true
	case ErrQuotaExhausted:
		return e.StatusCode == 429
	}
	return false
}
