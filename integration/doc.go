//go:build integration

// Package integration runs the fixtures and the harness against a real
// GitLab container.
//
// These tests require Docker and take several minutes to boot GitLab.
// Run with: go test -tags=integration ./integration/...
//
// Set GITLABTEST_IMAGE to test another image, or SKIP_DOCKER_TESTS=1 to skip.
package integration
