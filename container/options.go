package container

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

const (
	// DefaultImage is the GitLab image started when no image is configured.
	DefaultImage = "gitlab/gitlab-ce:latest"

	// DefaultName is the container name used when WithName is not given.
	// An empty name lets Docker pick one.
	DefaultName = ""

	// DefaultStartupTimeout bounds how long Start waits for GitLab to reconfigure.
	DefaultStartupTimeout = 180 * time.Second

	// DefaultPollInterval is the pause between two readiness checks.
	DefaultPollInterval = 5 * time.Second

	// HTTPPort is the container port GitLab serves HTTP on.
	HTTPPort = "80/tcp"
)

// Option configures a GitLab container.
type Option func(*options) error

type options struct {
	image          string
	name           string
	startupTimeout time.Duration
	pollInterval   time.Duration
	env            map[string]string
	omnibus        []string
	logger         *slog.Logger
	logConsumer    testcontainers.LogConsumer
}

func defaultOptions() *options {
	return &options{
		image:          DefaultImage,
		name:           DefaultName,
		startupTimeout: DefaultStartupTimeout,
		pollInterval:   DefaultPollInterval,
		env:            make(map[string]string),
		logger:         slog.New(slog.DiscardHandler),
	}
}

// WithImage sets the GitLab image to run.
func WithImage(image string) Option {
	return func(o *options) error {
		if image == "" {
			return errors.New("image must not be empty")
		}
		o.image = image
		return nil
	}
}

// WithName sets a fixed container name.
func WithName(name string) Option {
	return func(o *options) error {
		o.name = name
		return nil
	}
}

// WithStartupTimeout sets how long to wait for GitLab to finish reconfiguring.
// Default: 180s
func WithStartupTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return errors.New("startup timeout must be positive")
		}
		o.startupTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the pause between readiness checks.
// Default: 5s
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return errors.New("poll interval must be positive")
		}
		o.pollInterval = interval
		return nil
	}
}

// WithEnv adds environment variables to the container.
func WithEnv(env map[string]string) Option {
	return func(o *options) error {
		for k, v := range env {
			o.env[k] = v
		}
		return nil
	}
}

// WithOmnibusConfig appends lines to GITLAB_OMNIBUS_CONFIG.
func WithOmnibusConfig(lines ...string) Option {
	return func(o *options) error {
		o.omnibus = append(o.omnibus, lines...)
		return nil
	}
}

// WithLogger sets the logger used for readiness progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithLogConsumer streams container output to consumer.
func WithLogConsumer(consumer testcontainers.LogConsumer) Option {
	return func(o *options) error {
		o.logConsumer = consumer
		return nil
	}
}

// environment merges the omnibus settings into the user supplied env.
func (o *options) environment() map[string]string {
	env := make(map[string]string, len(o.env)+1)
	for k, v := range o.env {
		env[k] = v
	}
	if len(o.omnibus) > 0 {
		lines := o.omnibus
		if existing, ok := env["GITLAB_OMNIBUS_CONFIG"]; ok && existing != "" {
			lines = append([]string{existing}, lines...)
		}
		env["GITLAB_OMNIBUS_CONFIG"] = strings.Join(lines, "; ")
	}
	return env
}
