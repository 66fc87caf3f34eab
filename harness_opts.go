package gitlabtest

import (
	"errors"
	"log/slog"

	"github.com/meigma/gitlabtest/container"
)

const (
	// DefaultToken is the root personal access token seeded into the instance.
	DefaultToken = "gitlabtest-token"

	// ImageEnv names the environment variable that overrides the GitLab image.
	// An explicit container.WithImage still takes precedence.
	ImageEnv = "GITLABTEST_IMAGE"

	// SkipEnv names the environment variable that makes Shared skip the test
	// when set to "1".
	SkipEnv = "SKIP_DOCKER_TESTS"
)

// Option configures a Harness.
type Option func(*Harness) error

// WithContainerOptions passes options through to container.Start.
func WithContainerOptions(opts ...container.Option) Option {
	return func(h *Harness) error {
		h.containerOpts = append(h.containerOpts, opts...)
		return nil
	}
}

// WithToken sets the personal access token to seed and write into the config.
// Default: [DefaultToken]
func WithToken(token string) Option {
	return func(h *Harness) error {
		if token == "" {
			return errors.New("token must not be empty")
		}
		h.token = token
		return nil
	}
}

// WithConfigDir sets the directory the config file is written to.
// Default: os.TempDir()
func WithConfigDir(dir string) Option {
	return func(h *Harness) error {
		if dir == "" {
			return errors.New("config dir must not be empty")
		}
		h.configDir = dir
		return nil
	}
}

// WithSection sets the name of the server section in the config file.
// Default: config.DefaultSection
func WithSection(section string) Option {
	return func(h *Harness) error {
		if section == "" || section == "global" {
			return errors.New("invalid section name")
		}
		h.section = section
		return nil
	}
}

// WithoutReset keeps existing records instead of wiping the instance on start.
func WithoutReset() Option {
	return func(h *Harness) error {
		h.reset = false
		return nil
	}
}

// WithLogger sets the logger shared by the harness, its container and its fixtures.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		h.logger = logger
		return nil
	}
}
