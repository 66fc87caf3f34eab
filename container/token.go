package container

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
)

const (
	// DefaultTokenName is the name of the personal access token created by SeedToken.
	DefaultTokenName = "gitlabtest"

	// TokenLifetimeDays is how many days a seeded token stays valid. GitLab
	// caps personal access tokens at 365 days, which a calendar year
	// containing a leap day would exceed.
	TokenLifetimeDays = 364
)

//go:embed set_token.rb.tmpl
var setTokenScript string

var setTokenTemplate = template.Must(template.New("set_token").
	Funcs(template.FuncMap{"rubyString": rubyString}).
	Parse(setTokenScript))

type tokenParams struct {
	Name      string
	Token     string
	ExpiresAt string
}

// SeedToken makes token a valid root personal access token.
//
// It runs a script through `gitlab-rails runner` inside the container. The
// token gets the api and sudo scopes and expires [TokenLifetimeDays] from now. An
// existing token with the same name is overwritten, so seeding is idempotent.
// The trimmed runner output is returned.
func SeedToken(ctx context.Context, execer Execer, token string) (string, error) {
	if token == "" {
		return "", errors.New("container: token must not be empty")
	}

	script, err := renderTokenScript(tokenParams{
		Name:      DefaultTokenName,
		Token:     token,
		ExpiresAt: tokenExpiry(time.Now()),
	})
	if err != nil {
		return "", err
	}

	out, err := run(ctx, execer, []string{"gitlab-rails", "runner", script})
	if err != nil {
		return "", fmt.Errorf("seed token: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// SeedToken installs token in this container. See the package level SeedToken.
func (c *Container) SeedToken(ctx context.Context, token string) (string, error) {
	return SeedToken(ctx, c.Container, token)
}

func tokenExpiry(now time.Time) string {
	return now.AddDate(0, 0, TokenLifetimeDays).Format(time.DateOnly)
}

func renderTokenScript(p tokenParams) (string, error) {
	var buf bytes.Buffer
	if err := setTokenTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("container: render token script: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// rubyString quotes s as a single-quoted Ruby literal.
func rubyString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
