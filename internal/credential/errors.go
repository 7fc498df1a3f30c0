package credential

import (
	"fmt"

	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// Kind tags a resolution failure.
type Kind string

// Resolution failure kinds.
const (
	MissingCredential   Kind = "missing_credential"
	UnsupportedSource   Kind = "unsupported_source"
	InvalidAccountIndex Kind = "invalid_account_index"
)

func (k Kind) String() string { return string(k) }

// Error is a provider-scoped resolution failure.
type Error struct {
	Provider provider.ID
	Kind     Kind
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Detail)
}

// Is matches the sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Provider == "" && t.Detail == ""
}

// Sentinels for errors.Is.
var (
	ErrMissingCredential   = &Error{Kind: MissingCredential}
	ErrUnsupportedSource   = &Error{Kind: UnsupportedSource}
	ErrInvalidAccountIndex = &Error{Kind: InvalidAccountIndex}
)

func newError(id provider.ID, kind Kind, format string, args ...any) *Error {
	return &Error{Provider: id, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
