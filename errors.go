package gitlabtest

import (
	"github.com/meigma/gitlabtest/config"
	"github.com/meigma/gitlabtest/container"
)

// Errors re-exported from container.
var (
	// ErrNotReconfigured is returned when GitLab does not finish reconfiguring
	// within the startup timeout.
	ErrNotReconfigured = container.ErrNotReconfigured
)

// Errors re-exported from config.
var (
	// ErrSectionNotFound is returned when the config file has no such server section.
	ErrSectionNotFound = config.ErrSectionNotFound

	// ErrMissingURL is returned when a server section has no url.
	ErrMissingURL = config.ErrMissingURL

	// ErrUnsupportedAPIVersion is returned for any API version other than 4.
	ErrUnsupportedAPIVersion = config.ErrUnsupportedAPIVersion

	// ErrReservedSection is returned when a server section is named "global".
	ErrReservedSection = config.ErrReservedSection
)

// ExecError reports a command that exited non-zero inside the container.
type ExecError = container.ExecError
