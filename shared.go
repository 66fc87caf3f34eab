package gitlabtest

import (
	"context"
	"os"
	"sync"
	"testing"
)

var (
	sharedOnce    sync.Once
	sharedHarness *Harness
	sharedErr     error
)

// Shared returns the process-wide harness, starting it on first use.
//
// Booting GitLab takes minutes, so every test in the binary shares one
// instance. Options are honored only on the first call. The harness lives
// until the process exits; stop it explicitly with StopShared from TestMain
// if the container must not outlive the run.
//
// The test is skipped in -short mode and when SKIP_DOCKER_TESTS=1.
func Shared(tb testing.TB, opts ...Option) *Harness {
	tb.Helper()

	if testing.Short() {
		tb.Skip("GitLab harness skipped in short mode")
	}
	if os.Getenv(SkipEnv) == "1" {
		tb.Skip(SkipEnv + " is set")
	}

	sharedOnce.Do(func() {
		sharedHarness, sharedErr = Start(context.Background(), opts...)
	})

	if sharedErr != nil {
		tb.Fatalf("start gitlab harness: %v", sharedErr)
	}
	return sharedHarness
}

// StopShared terminates the harness started by Shared, if any.
func StopShared(ctx context.Context) error {
	if sharedHarness == nil {
		return nil
	}
	return sharedHarness.Close(ctx)
}
