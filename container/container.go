// Package container runs GitLab in Docker for integration tests.
//
// [Start] launches the omnibus image, waits for it to log [Sentinel] using
// [ReconfiguredStrategy] and resolves the mapped HTTP endpoint. [SeedToken]
// then installs a known personal access token for the root user so that a
// client can authenticate without going through the UI.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// shmSize is the /dev/shm size GitLab's bundled Prometheus and Puma expect.
const shmSize = 256 << 20

// defaultOmnibusConfig keeps the instance small enough to boot in CI.
var defaultOmnibusConfig = []string{
	"prometheus_monitoring['enable'] = false",
	"gitlab_rails['usage_ping_enabled'] = false",
	"registry['enable'] = false",
	"puma['worker_processes'] = 0",
	"sidekiq['concurrency'] = 4",
}

// Container is a running GitLab container.
type Container struct {
	testcontainers.Container
	endpoint string
}

// Start starts a GitLab container and blocks until it has reconfigured.
//
// On any error after the container was created it is terminated before
// returning.
func Start(ctx context.Context, opts ...Option) (*Container, error) {
	o := defaultOptions()
	o.omnibus = append(o.omnibus, defaultOmnibusConfig...)
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("container: %w", err)
		}
	}

	req := testcontainers.ContainerRequest{
		Image:        o.image,
		Name:         o.name,
		ExposedPorts: []string{HTTPPort},
		Env:          o.environment(),
		HostConfigModifier: func(hc *dockercontainer.HostConfig) {
			hc.ShmSize = shmSize
		},
		WaitingFor: ForReconfigured().
			WithStartupTimeout(o.startupTimeout).
			WithPollInterval(o.pollInterval).
			WithLogger(o.logger),
	}
	if o.logConsumer != nil {
		req.LogConsumerCfg = &testcontainers.LogConsumerConfig{
			Consumers: []testcontainers.LogConsumer{o.logConsumer},
		}
	}

	o.logger.Info("starting gitlab container", "image", o.image)

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("start gitlab container: %w", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, nat.Port(HTTPPort), "http")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("resolve gitlab endpoint: %w", err)
	}

	return &Container{Container: ctr, endpoint: endpoint}, nil
}

// Endpoint returns the base URL of the GitLab web service, e.g. http://localhost:32768.
func (c *Container) Endpoint() string {
	return c.endpoint
}

// Logs returns everything the container has written so far.
func (c *Container) Logs(ctx context.Context) (string, error) {
	rc, err := c.Container.Logs(ctx)
	if err != nil {
		return "", fmt.Errorf("get logs: %w", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read logs: %w", err)
	}
	return string(b), nil
}

// Exec runs cmd inside the container and returns its combined output.
func (c *Container) Exec(ctx context.Context, cmd ...string) (string, error) {
	return run(ctx, c.Container, cmd)
}

// Terminate stops and removes the container. It is safe to call on nil.
func (c *Container) Terminate(ctx context.Context) error {
	if c == nil || c.Container == nil {
		return nil
	}
	return c.Container.Terminate(ctx)
}

// Execer runs commands inside a container.
// testcontainers.Container satisfies it.
type Execer interface {
	Exec(ctx context.Context, cmd []string, options ...tcexec.ProcessOption) (int, io.Reader, error)
}

// ExecError reports a command that ran but exited non-zero.
type ExecError struct {
	Cmd      []string
	ExitCode int
	Output   string
}

func (e *ExecError) Error() string {
	name := "command"
	if len(e.Cmd) > 0 {
		name = e.Cmd[0]
	}
	return fmt.Sprintf("container: %s exited with code %d: %s",
		name, e.ExitCode, strings.TrimSpace(e.Output))
}

func run(ctx context.Context, execer Execer, cmd []string) (string, error) {
	if len(cmd) == 0 {
		return "", errors.New("container: empty command")
	}

	code, reader, err := execer.Exec(ctx, cmd, tcexec.Multiplexed())
	if err != nil {
		return "", fmt.Errorf("container: exec %s: %w", cmd[0], err)
	}

	var output string
	if reader != nil {
		b, err := io.ReadAll(reader)
		if err != nil {
			return "", fmt.Errorf("container: read %s output: %w", cmd[0], err)
		}
		output = string(b)
	}

	if code != 0 {
		return output, &ExecError{Cmd: cmd, ExitCode: code, Output: output}
	}
	return output, nil
}
