package reroute

import (
	"errors"
	"fmt"

	"github.com/strato-io/strato/internal/identity"
)

// NotFoundError reports that a resource could not be resolved locally
// and routing could not (or was not allowed to) consult child zones.
type NotFoundError struct {
	Ref identity.Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", e.Ref.String())
}

// IsNotFound reports whether err is a routing not-found.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
