package generation

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptySchemaSet        = errors.New("EMPTY_SCHEMA_SET")
	ErrSchemaNotFound        = errors.New("SCHEMA_NOT_FOUND")
	ErrInvalidSchemaDocument = errors.New("INVALID_SCHEMA_DOCUMENT")
	ErrEmptyPrompt           = errors.New("EMPTY_PROMPT")
)

// UpstreamError is returned when the completion capability fails. Generation
// stops at the failing attempt.
type UpstreamError struct {
	Attempt int
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Timeout reports whether the completion call ran out of time.
func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
