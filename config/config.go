// Package config reads and writes the INI file that tells a GitLab client
// where the test instance lives and how to authenticate.
//
// The file has a [global] section naming the default server section and a
// request timeout, followed by one section per server:
//
//	[global]
//	default = local
//	timeout = 60
//
//	[local]
//	url = http://localhost:32768
//	private_token = gitlabtest-token
//	api_version = 4
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// DefaultSection is the server section written by Write and read when
	// neither the caller nor [global] names one.
	DefaultSection = "local"

	// DefaultAPIVersion is the only REST API version GitLab still serves.
	DefaultAPIVersion = "4"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 60 * time.Second

	// FileName is the conventional name of the generated file.
	FileName = "gitlabtest.cfg"

	globalSection = "global"
)

var (
	// ErrSectionNotFound is returned when the requested server section does not exist.
	ErrSectionNotFound = errors.New("config: section not found")

	// ErrMissingURL is returned when a server section has no url.
	ErrMissingURL = errors.New("config: missing url")

	// ErrUnsupportedAPIVersion is returned for any api_version other than 4.
	ErrUnsupportedAPIVersion = errors.New("config: unsupported api version")

	// ErrReservedSection is returned when a server section is named "global".
	ErrReservedSection = errors.New("config: reserved section name")
)

// Config holds the connection parameters of one server section.
type Config struct {
	// Section is the name of the server section, e.g. "local".
	Section string

	// URL is the base URL of the GitLab web service, without /api/v4.
	URL string

	PrivateToken string
	APIVersion   string
	Timeout      time.Duration
}

// withDefaults fills unset fields. The file stores whole seconds, so the
// timeout is rounded up to the next second.
func (c Config) withDefaults() Config {
	if c.Section == "" {
		c.Section = DefaultSection
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if r := c.Timeout % time.Second; r != 0 {
		c.Timeout += time.Second - r
	}
	return c
}

// Validate reports whether c can be used to build a client.
func (c Config) Validate() error {
	if c.Section == globalSection {
		return fmt.Errorf("%w: %q", ErrReservedSection, c.Section)
	}
	if c.URL == "" {
		return fmt.Errorf("%w in section %q", ErrMissingURL, c.Section)
	}
	if c.APIVersion != DefaultAPIVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedAPIVersion, c.APIVersion)
	}
	return nil
}

// Render encodes cfg as an INI document. The written section also becomes
// the [global] default.
func Render(cfg Config) ([]byte, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := ini.Empty()

	global := f.Section(globalSection)
	global.Key("default").SetValue(cfg.Section)
	global.Key("timeout").SetValue(strconv.Itoa(int(cfg.Timeout / time.Second)))

	server := f.Section(cfg.Section)
	server.Key("url").SetValue(cfg.URL)
	server.Key("private_token").SetValue(cfg.PrivateToken)
	server.Key("api_version").SetValue(cfg.APIVersion)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders cfg to path. The file holds a credential, so it is created
// with mode 0600.
func Write(path string, cfg Config) error {
	data, err := Render(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Load reads the server section named section from path. An empty section
// selects the [global] default, and then DefaultSection.
func Load(path, section string) (Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return parse(f, section)
}

// Parse is Load for an in-memory document.
func Parse(data []byte, section string) (Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return parse(f, section)
}

func parse(f *ini.File, section string) (Config, error) {
	global := f.Section(globalSection)
	if section == "" {
		section = global.Key("default").MustString(DefaultSection)
	}

	server, err := f.GetSection(section)
	if err != nil || section == globalSection {
		return Config{}, fmt.Errorf("%w: %q", ErrSectionNotFound, section)
	}

	timeout, err := readTimeout(server, global)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Section:      section,
		URL:          server.Key("url").String(),
		PrivateToken: server.Key("private_token").String(),
		APIVersion:   server.Key("api_version").MustString(DefaultAPIVersion),
		Timeout:      timeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readTimeout prefers the server's own timeout over the global one.
// Values are whole seconds.
func readTimeout(server, global *ini.Section) (time.Duration, error) {
	for _, s := range []*ini.Section{server, global} {
		if !s.HasKey("timeout") {
			continue
		}
		secs, err := s.Key("timeout").Int()
		if err != nil || secs <= 0 {
			return 0, fmt.Errorf("config: invalid timeout %q in section %q", s.Key("timeout").String(), s.Name())
		}
		return time.Duration(secs) * time.Second, nil
	}
	return DefaultTimeout, nil
}
