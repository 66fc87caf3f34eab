// Package fixture creates GitLab records for tests and deletes them afterwards.
//
// A [Factory] wraps a go-gitlab client. Each method creates one record with a
// unique name, registers its deletion with the test's Cleanup and returns the
// record:
//
//	f := fixture.New(client)
//	project := f.Project(t)
//	issue := f.Issue(t, project)
//
// Creation failures fail the test. Deletion failures at teardown are only
// logged: a record that is already gone, for example because the test deleted
// it itself, is not an error. Labels and variables are removed together with
// their project or group.
package fixture

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xanzy/go-gitlab"
)

// TB is the subset of testing.TB a Factory needs.
// *testing.T, *testing.B and ginkgo.GinkgoT() all satisfy it.
type TB interface {
	Helper()
	Cleanup(func())
	Logf(format string, args ...any)
	Errorf(format string, args ...any)
	FailNow()
}

// Option configures a Factory.
type Option func(*Factory)

// WithContext sets the context used for API calls. Teardown uses a
// non-cancelable copy so cleanup still runs after the test's context ends.
func WithContext(ctx context.Context) Option {
	return func(f *Factory) {
		f.ctx = ctx
	}
}

// WithLogger sets the logger that receives teardown results.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithIDs replaces NewID, e.g. for deterministic names.
func WithIDs(next func() string) Option {
	return func(f *Factory) {
		f.newID = next
	}
}

// Factory creates fixtures through a GitLab client.
type Factory struct {
	client *gitlab.Client
	ctx    context.Context
	logger *slog.Logger
	newID  func() string
}

// New returns a Factory using client.
func New(client *gitlab.Client, opts ...Option) *Factory {
	f := &Factory{
		client: client,
		ctx:    context.Background(),
		logger: slog.New(slog.DiscardHandler),
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the wrapped client.
func (f *Factory) Client() *gitlab.Client {
	return f.client
}

func (f *Factory) request() gitlab.RequestOptionFunc {
	return gitlab.WithContext(f.ctx)
}

// deleteFunc performs one deletion with the given request options.
type deleteFunc func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error)

// teardown registers a best-effort deletion. It never fails the test and
// never retries.
func (f *Factory) teardown(tb TB, kind, name string, del deleteFunc) {
	tb.Cleanup(func() {
		ctx := context.WithoutCancel(f.ctx)
		resp, err := del(gitlab.WithContext(ctx))

		switch {
		case err == nil:
			f.logger.Debug("fixture deleted", slog.String("kind", kind), slog.String("name", name))
		case isNotFound(resp, err):
			tb.Logf("%s %s already deleted: %v", kind, name, err)
			f.logger.Info("fixture already deleted",
				slog.String("kind", kind), slog.String("name", name), slog.Any("error", err))
		default:
			tb.Logf("%s %s could not be deleted: %v", kind, name, err)
			f.logger.Warn("fixture delete failed",
				slog.String("kind", kind), slog.String("name", name), slog.Any("error", err))
		}
	})
}

func isNotFound(resp *gitlab.Response, err error) bool {
	if resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var errResp *gitlab.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusNotFound
}
