package ids

import "github.com/google/uuid"

// New returns a new opaque entity identifier.
func New() string {
	return uuid.NewString()
}
