package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSecret indicates a shared or identity secret that is not valid
// base64 or does not decode to the expected length.
var ErrInvalidSecret = errors.New("domain: invalid secret")

// FieldError describes a single invalid field on a record.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Reason
}

// ValidationError collects every invalid field found while building a
// domain record, so callers can report all problems at once instead of
// fixing them one at a time.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("domain: invalid account: %s", strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrInvalidSecret) succeed when any of the invalid
// fields is a secret, so callers can branch on the class without walking
// the field list.
func (e *ValidationError) Is(target error) bool {
	if target != ErrInvalidSecret {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == "shared_secret" || f.Field == "identity_secret" {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
