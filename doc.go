// Package gitlabtest runs a throwaway GitLab instance for integration tests
// of code built on the go-gitlab client.
//
// A [Harness] owns a GitLab container, the INI config file that points a
// client at it and the authenticated client itself. Subpackages provide the
// pieces individually:
//   - container: start the image, wait until it has reconfigured, exec into it
//   - config: write and read the client config file
//   - fixture: create test records and delete them after the test
//
// # Quick Start
//
// Share one instance across the test binary:
//
//	func TestProjects(t *testing.T) {
//	    h := gitlabtest.Shared(t)
//	    f := h.Fixtures()
//
//	    project := f.Project(t)
//	    issue := f.Issue(t, project)
//	    // exercise h.Client() against project and issue
//	}
//
// Or manage the lifetime yourself:
//
//	h, err := gitlabtest.Start(ctx,
//	    gitlabtest.WithContainerOptions(container.WithImage("gitlab/gitlab-ce:17.0.0-ce.0")),
//	)
//	if err != nil {
//	    return err
//	}
//	defer h.Close(ctx)
//
// # Configuration
//
// The generated file lives at [Harness.ConfigPath] and can be read by any
// tool that understands it:
//
//	client, cfg, err := config.LoadClient(h.ConfigPath(), "")
//
// Set GITLABTEST_IMAGE to test against another GitLab version and
// SKIP_DOCKER_TESTS=1 to skip tests that need Docker.
package gitlabtest
