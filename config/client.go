package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xanzy/go-gitlab"
)

// APIURL returns the REST base URL, e.g. http://localhost:32768/api/v4.
func (c Config) APIURL() string {
	c = c.withDefaults()
	return strings.TrimSuffix(c.URL, "/") + "/api/v" + c.APIVersion
}

// NewClient builds a GitLab client for cfg. Extra options are applied after
// the base URL and HTTP client, so they can override both.
func NewClient(cfg Config, opts ...gitlab.ClientOptionFunc) (*gitlab.Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all := append([]gitlab.ClientOptionFunc{
		gitlab.WithBaseURL(cfg.APIURL()),
		gitlab.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}, opts...)

	client, err := gitlab.NewClient(cfg.PrivateToken, all...)
	if err != nil {
		return nil, fmt.Errorf("config: create client: %w", err)
	}
	return client, nil
}

// LoadClient is Load followed by NewClient.
func LoadClient(path, section string, opts ...gitlab.ClientOptionFunc) (*gitlab.Client, Config, error) {
	cfg, err := Load(path, section)
	if err != nil {
		return nil, Config{}, err
	}
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, Config{}, err
	}
	return client, cfg, nil
}
