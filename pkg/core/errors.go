package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below match these via errors.Is.
var (
	ErrInvalidLevel    = errors.New("invalid level")
	ErrTableNotFound   = errors.New("table not found")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrDuplicateTable  = errors.New("duplicate table")
	ErrDependencyCycle = errors.New("dependency cycle")
	ErrGeneration      = errors.New("table generation failed")
)

// InvalidLevelError is returned when a level string is not bronze, silver or gold.
type InvalidLevelError struct {
	Level string
}

func (e *InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid level %q: must be one of 'bronze', 'silver', or 'gold'", e.Level)
}

// Is implements errors.Is.
func (e *InvalidLevelError) Is(target error) bool {
	return target == ErrInvalidLevel
}

// TableNotFoundError is returned when a table name is not registered.
type TableNotFoundError struct {
	Name  string
	Level Level // empty when the lookup was not level-scoped
}

func (e *TableNotFoundError) Error() string {
	if e.Level != "" {
		return fmt.Sprintf("table %q not found in %s lake", e.Name, e.Level)
	}
	return fmt.Sprintf("table %q not found", e.Name)
}

// Is implements errors.Is.
func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}

// TopicNotFoundError is returned when a feed topic is unknown or unavailable for a session.
type TopicNotFoundError struct {
	Topic string
}

func (e *TopicNotFoundError) Error() string {
	return fmt.Sprintf("topic %q not found", e.Topic)
}

// Is implements errors.Is.
func (e *TopicNotFoundError) Is(target error) bool {
	return target == ErrTopicNotFound
}

// DuplicateTableError is returned when a name is registered at a second level.
type DuplicateTableError struct {
	Name     string
	Existing Level
	Attempt  Level
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("table %q already registered at %s level, cannot register at %s",
		e.Name, e.Existing, e.Attempt)
}

// Is implements errors.Is.
func (e *DuplicateTableError) Is(target error) bool {
	return target == ErrDuplicateTable
}

// CycleError reports a circular dependency. Path starts and ends with the same table.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Path, " -> ")
}

// Is implements errors.Is.
func (e *CycleError) Is(target error) bool {
	return target == ErrDependencyCycle
}

// GenerationError wraps a failure raised while generating a table.
type GenerationError struct {
	Table string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating table %q: %v", e.Table, e.Err)
}

// Unwrap returns the underlying callback error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}
