package capture

import (
	"errors"
	"fmt"
)

// ErrStreamEnded is returned when a container log stream reaches EOF.
var ErrStreamEnded = errors.New("log stream ended")

type TargetNotFoundError struct {
	name string
	err  error
}

func NewTargetNotFoundError(name string, err error) *TargetNotFoundError {
	return &TargetNotFoundError{name: name, err: err}
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("container %q not found", e.name)
}

func (e *TargetNotFoundError) Unwrap() error {
	return e.err
}

// IsTargetNotFound reports whether err means the container does not exist.
func IsTargetNotFound(err error) bool {
	var nf *TargetNotFoundError
	return errors.As(err, &nf)
}
