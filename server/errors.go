package server

import (
	"errors"
	"fmt"
)

// Registration errors.
var (
	ErrDuplicateMethod = errors.New("duplicate method")
	ErrReservedName    = errors.New("reserved method name")
	ErrRegistryFrozen  = errors.New("registry is frozen")
	ErrInvalidHandler  = errors.New("invalid handler")
)

// DuplicateMethodError reports a method name that is already registered.
type DuplicateMethodError struct {
	Name string
}

func (e *DuplicateMethodError) Error() string {
	return fmt.Sprintf("method %q already registered", e.Name)
}

// Is makes DuplicateMethodError match ErrDuplicateMethod.
func (e *DuplicateMethodError) Is(target error) bool {
	return target == ErrDuplicateMethod
}

func invalidHandler(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHandler, fmt.Sprintf(format, args...))
}
