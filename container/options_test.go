package container

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opt     Option
		wantErr string
	}{
		{name: "empty image", opt: WithImage(""), wantErr: "image must not be empty"},
		{name: "zero timeout", opt: WithStartupTimeout(0), wantErr: "startup timeout must be positive"},
		{name: "negative interval", opt: WithPollInterval(-time.Second), wantErr: "poll interval must be positive"},
		{name: "nil logger", opt: WithLogger(nil), wantErr: "logger must not be nil"},
		{name: "valid image", opt: WithImage("gitlab/gitlab-ee:17.0.0-ee.0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.opt(defaultOptions())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	o := defaultOptions()
	assert.Equal(t, DefaultImage, o.image)
	assert.Equal(t, DefaultStartupTimeout, o.startupTimeout)
	assert.Equal(t, DefaultPollInterval, o.pollInterval)
	assert.Empty(t, o.environment())
}

func TestOptions_Environment(t *testing.T) {
	t.Parallel()

	o := defaultOptions()
	require.NoError(t, WithEnv(map[string]string{
		"TZ":                    "UTC",
		"GITLAB_OMNIBUS_CONFIG": "external_url 'http://gitlab.test'",
	})(o))
	require.NoError(t, WithOmnibusConfig("registry['enable'] = false", "puma['worker_processes'] = 0")(o))

	env := o.environment()
	assert.Equal(t, "UTC", env["TZ"])
	assert.Equal(t,
		"external_url 'http://gitlab.test'; registry['enable'] = false; puma['worker_processes'] = 0",
		env["GITLAB_OMNIBUS_CONFIG"])

	// environment must not alias the option state
	env["TZ"] = "CET"
	assert.Equal(t, "UTC", o.env["TZ"])
}
