package db

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the persistence service
var (
	ErrEncoding    = errors.New("encoding failure")
	ErrDecoding    = errors.New("decoding failure")
	ErrImageSave   = errors.New("image save failure")
	ErrImageDelete = errors.New("image deletion failure")
	ErrInvalidName = errors.New("invalid image filename")
)

// OpError records a failed persistence operation with the file it touched
type OpError struct {
	Kind error
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func opError(kind error, path string, err error) error {
	return &OpError{Kind: kind, Path: path, Err: err}
}
