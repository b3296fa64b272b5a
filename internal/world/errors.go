package world

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid city configuration")

	// ErrEmptyPopulation is returned by statistics that divide by the
	// number of residents when the city has none.
	ErrEmptyPopulation = errors.New("city has no residents")
)

// ConfigError describes a rejected construction parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid city configuration: %s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
