package stage

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRegistry = errors.New("invalid stage registry")
	ErrOrdinalOrder    = errors.New("stage ordinals out of order")
)

// RegistryError wraps deterministic registry validation failures.
type RegistryError struct {
	Kind error
	Msg  string
}

func (e *RegistryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *RegistryError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &RegistryError{Kind: ErrInvalidRegistry, Msg: fmt.Sprintf(format, args...)}
}

func orderError(prev, next Descriptor) error {
	return &RegistryError{
		Kind: ErrOrdinalOrder,
		Msg:  fmt.Sprintf("%s (%d) declared after %s (%d)", next.Name, next.Ordinal, prev.Name, prev.Ordinal),
	}
}
