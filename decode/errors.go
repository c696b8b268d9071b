package decode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no registered decoder recognizes the data.
	ErrUnsupportedFormat = errors.New("decode: unsupported image format")
	// ErrEmpty is returned for zero-length blobs and zero-sized images.
	ErrEmpty = errors.New("decode: empty image")
	// ErrTooLarge is returned when the decoded pixel count exceeds the configured limit.
	ErrTooLarge = errors.New("decode: image too large")
)

// Stage identifies the step of a decode that failed.
type Stage string

const (
	StageOpen   Stage = "open"
	StageRead   Stage = "read"
	StageDecode Stage = "decode"
	StageBudget Stage = "budget"
)

// Error describes a failed decode of one image.
type Error struct {
	ID    string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %s: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageErr(id string, stage Stage, err error) *Error {
	return &Error{ID: id, Stage: stage, Err: err}
}
