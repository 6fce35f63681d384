package upload

import (
	"context"
	"errors"
	"fmt"
)

// UploadClientTag identifies the uploading client to the remote service.
const UploadClientTag = "TP Web App"

var (
	// ErrTransport wraps network failures while sending a request.
	ErrTransport = errors.New("upload transport")
	// ErrRejected marks a non-2xx response from the remote service.
	ErrRejected = errors.New("upload rejected")
)

// Client defines the interface for sending one workout file to the remote service
type Client interface {
	Upload(ctx context.Context, payload Payload) Outcome
}

// Payload carries one encoded FIT file. It is consumed exactly once.
type Payload struct {
	FileName       string
	EncodedContent string
	AthleteID      uint64
	UploadClient   string
}

// OutcomeKind enumerates the ways a file task can end
type OutcomeKind int

const (
	OutcomeUploaded OutcomeKind = iota
	OutcomeRejected
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one file
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	// Message holds the server response body for rejections and the reason for skips.
	Message string
	Err     error
}

// Uploaded returns a successful outcome
func Uploaded(status int) Outcome {
	return Outcome{Kind: OutcomeUploaded, StatusCode: status}
}

// Rejected returns an outcome for a non-2xx response
func Rejected(status int, body string) Outcome {
	return Outcome{
		Kind:       OutcomeRejected,
		StatusCode: status,
		Message:    body,
		Err:        fmt.Errorf("%w: status %d", ErrRejected, status),
	}
}

// Skipped returns an outcome for a file that was intentionally not uploaded
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Message: reason}
}

// Failed returns an outcome for a file that could not be processed
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}
