package feature

import "fmt"

// InvalidClassError reports a requested safety class outside {1,2,3}.
type InvalidClassError struct {
	Level int
}

func (e *InvalidClassError) Error() string {
	return fmt.Sprintf("invalid safety class %d: must be 1, 2, or 3", e.Level)
}

// DuplicateFeatureError reports a second registration of an identifier.
// It is a registry misconfiguration, fatal at initialization.
type DuplicateFeatureError struct {
	ID string
}

func (e *DuplicateFeatureError) Error() string {
	return fmt.Sprintf("feature %q is already registered", e.ID)
}

// UnknownFeatureError reports a lookup of an unregistered identifier.
type UnknownFeatureError struct {
	ID string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("feature %q is not registered", e.ID)
}

// BadDescriptorError reports a descriptor whose class bounds would break
// the superset nesting of the classes.
type BadDescriptorError struct {
	ID     string
	Reason string
}

func (e *BadDescriptorError) Error() string {
	return fmt.Sprintf("feature %q: %s", e.ID, e.Reason)
}
