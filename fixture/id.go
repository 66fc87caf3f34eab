package fixture

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh identifier for fixture names.
//
// It is the 32 hex digit form of a random UUID, which is unique in practice
// and valid in group paths, usernames and CI variable keys.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
