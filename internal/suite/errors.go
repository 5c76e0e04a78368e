package suite

import "errors"

var (
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrInvalidName      = errors.New("invalid name")
	ErrRunInProgress    = errors.New("run in progress")
	ErrTemplateNotFound = errors.New("template not found")
)

// ExecutionError reports that the execution capability could not produce a
// verdict for a single test. The executor records it as a failed result
// instead of aborting the run.
type ExecutionError struct {
	Message string
	Err     error
}

func NewExecutionError(message string) *ExecutionError {
	return &ExecutionError{Message: message}
}

func (e *ExecutionError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
