package distribution

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every malformed distribution error
	ErrConfiguration = errors.New("invalid distribution configuration")
	// ErrUnknownChoice is returned when a label is not one of the categorical choices
	ErrUnknownChoice = errors.New("unknown categorical choice")
)

// ConfigurationError describes malformed bounds or choices, or a value of the
// wrong kind for a distribution.
type ConfigurationError struct {
	Distribution string
	Reason       string
	Err          error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Distribution, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match any ConfigurationError
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(d Distribution, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Distribution: d.String(),
		Reason:       fmt.Sprintf(format, args...),
	}
}
