package classifier

import (
	"errors"
	"fmt"
)

// ErrNotTrained is returned by inference and persistence calls on a
// classifier that has not been trained or loaded.
var ErrNotTrained = errors.New("classifier is not trained")

// CorruptModelError reports a model file that exists but cannot be used.
type CorruptModelError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt model %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt model %s: %s", e.Path, e.Reason)
}

func (e *CorruptModelError) Unwrap() error {
	return e.Err
}
