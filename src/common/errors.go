package common

import (
	"errors"
	"fmt"
)

// ErrEmptyManifest is returned when there is nothing to render
var ErrEmptyManifest = errors.New("no certificates to render")

// DecodeError is a file with an image extension that could not be read or decoded.
// It is never fatal: the file is skipped and the run continues.
type DecodeError struct {
	Filename     string
	DetectedType string
	Err          error
}

func (e *DecodeError) Error() string {
	if e.DetectedType != "" {
		return fmt.Sprintf("decode %s (detected %s): %v", e.Filename, e.DetectedType, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FilesystemError aborts the run
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
