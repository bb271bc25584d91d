package incident

import (
	"fmt"

	"github.com/incidentlab/topograph/pkg/errors"
)

// EntityNotFoundError is returned when a requested entity id is absent from
// the snapshot.
type EntityNotFoundError struct {
	EntityID string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", e.EntityID)
}

// Code returns [errors.ErrCodeEntityNotFound].
func (e *EntityNotFoundError) Code() errors.Code { return errors.ErrCodeEntityNotFound }

// ReferenceError reports a snapshot element naming something that does not
// exist, detected while loading.
type ReferenceError struct {
	Kind string // "edge", "alert", "rank", "entity" or "aggregated edge"
	Ref  string // the element holding the reference, e.g. "a->b" or an alert id
	Name string // the unresolved id or name
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %s references unknown %q", e.Kind, e.Ref, e.Name)
}

// Code returns [errors.ErrCodeReferenceIntegrity].
func (e *ReferenceError) Code() errors.Code { return errors.ErrCodeReferenceIntegrity }

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidSnapshot, format, args...)
}
