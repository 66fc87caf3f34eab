package gitlabtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xanzy/go-gitlab"

	"github.com/meigma/gitlabtest/config"
	"github.com/meigma/gitlabtest/container"
	"github.com/meigma/gitlabtest/fixture"
)

// Harness is a running GitLab instance with a generated config file and an
// authenticated client.
type Harness struct {
	// Options
	containerOpts []container.Option
	token         string
	configDir     string
	section       string
	reset         bool
	logger        *slog.Logger

	// State
	container  *container.Container
	configPath string
	cfg        config.Config
	client     *gitlab.Client
}

// Start brings up a GitLab harness.
//
// It starts the container and waits for it to reconfigure, installs the
// access token, writes the config file, builds a client from that file and,
// unless [WithoutReset] is given, deletes all projects, groups and non-root
// users. If any step fails the container is terminated.
func Start(ctx context.Context, opts ...Option) (*Harness, error) {
	h, err := newHarness(opts...)
	if err != nil {
		return nil, err
	}

	ctr, err := container.Start(ctx, h.containerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("gitlabtest: %w", err)
	}
	h.container = ctr

	if err := h.setup(ctx); err != nil {
		_ = h.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return h, nil
}

func newHarness(opts ...Option) (*Harness, error) {
	h := &Harness{
		token:     DefaultToken,
		configDir: os.TempDir(),
		section:   config.DefaultSection,
		reset:     true,
		logger:    slog.New(slog.DiscardHandler),
	}
	if image := os.Getenv(ImageEnv); image != "" {
		h.containerOpts = append(h.containerOpts, container.WithImage(image))
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("gitlabtest: %w", err)
		}
	}
	h.configPath = filepath.Join(h.configDir, config.FileName)
	return h, nil
}

// containerOptions puts the harness logger first so explicit options win.
func (h *Harness) containerOptions() []container.Option {
	return append([]container.Option{container.WithLogger(h.logger)}, h.containerOpts...)
}

func (h *Harness) setup(ctx context.Context) error {
	out, err := h.container.SeedToken(ctx, h.token)
	if err != nil {
		return fmt.Errorf("gitlabtest: %w", err)
	}
	h.logger.Debug("access token seeded", slog.String("output", out))

	return h.connect(ctx, h.container.Endpoint())
}

// connect writes the config file for endpoint, loads it back into a client
// and resets the instance.
func (h *Harness) connect(ctx context.Context, endpoint string) error {
	cfg := config.Config{
		Section:      h.section,
		URL:          endpoint,
		PrivateToken: h.token,
	}
	if err := config.Write(h.configPath, cfg); err != nil {
		return fmt.Errorf("gitlabtest: %w", err)
	}
	h.logger.Info("config written", slog.String("path", h.configPath), slog.String("url", endpoint))

	client, loaded, err := config.LoadClient(h.configPath, h.section)
	if err != nil {
		return fmt.Errorf("gitlabtest: %w", err)
	}
	h.client = client
	h.cfg = loaded

	if h.reset {
		if err := h.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Client returns the authenticated GitLab client.
func (h *Harness) Client() *gitlab.Client {
	return h.client
}

// Config returns the connection parameters read back from the config file.
func (h *Harness) Config() config.Config {
	return h.cfg
}

// ConfigPath returns the path of the generated config file.
func (h *Harness) ConfigPath() string {
	return h.configPath
}

// Container returns the underlying container, or nil if the harness was not
// started by Start.
func (h *Harness) Container() *container.Container {
	return h.container
}

// Fixtures returns a fixture factory bound to the harness client.
func (h *Harness) Fixtures(opts ...fixture.Option) *fixture.Factory {
	return fixture.New(h.client, append([]fixture.Option{fixture.WithLogger(h.logger)}, opts...)...)
}

// Reset deletes all projects, groups and non-root users.
func (h *Harness) Reset(ctx context.Context) error {
	if err := fixture.Reset(ctx, h.client, h.logger); err != nil {
		return fmt.Errorf("gitlabtest: reset: %w", err)
	}
	return nil
}

// Close terminates the container and removes the config file.
func (h *Harness) Close(ctx context.Context) error {
	var errs []error
	if err := h.container.Terminate(ctx); err != nil {
		errs = append(errs, fmt.Errorf("terminate container: %w", err))
	}
	if err := os.Remove(h.configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove config: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("gitlabtest: %w", err)
	}
	return nil
}
