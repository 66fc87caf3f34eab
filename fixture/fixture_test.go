package fixture

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gitlabtest/internal/testutil"
)

// recordingTB captures failures without aborting the calling test.
// Fixture calls must run inside runTB so FailNow can end the goroutine.
type recordingTB struct {
	mu       sync.Mutex
	cleanups []func()
	logs     []string
	errors   []string
	failed   bool
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Cleanup(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, fn)
}

func (r *recordingTB) Logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingTB) FailNow() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
	runtime.Goexit()
}

// runCleanups runs registered cleanups last-in first-out, like testing.T.
func (r *recordingTB) runCleanups() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

func runTB(fn func(tb TB)) *recordingTB {
	tb := &recordingTB{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(tb)
	}()
	<-done
	return tb
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%04d", n)
	}
}

func TestNewID(t *testing.T) {
	t.Parallel()

	valid := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]struct{}, 10000)
	for range 10000 {
		id := NewID()
		require.Regexp(t, valid, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGroup(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t), WithIDs(func() string { return "abc" }))

	var id int
	ok := t.Run("create", func(t *testing.T) {
		group := f.Group(t)
		assert.Equal(t, "test-group-abc", group.Name)
		assert.Equal(t, "group-abc", group.Path)
		assert.True(t, gl.Has(testutil.Groups, group.ID))
		id = group.ID
	})
	require.True(t, ok)

	assert.False(t, gl.Has(testutil.Groups, id), "group must be deleted at cleanup")
	assert.Equal(t, 1, gl.Deletes(testutil.Groups))
}

func TestProject(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t), WithIDs(func() string { return "abc" }))

	var id int
	ok := t.Run("create", func(t *testing.T) {
		project := f.Project(t)
		assert.Equal(t, "test-project-abc", project.Name)
		id = project.ID
	})
	require.True(t, ok)

	assert.False(t, gl.Has(testutil.Projects, id))
}

func TestUser(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t), WithIDs(func() string { return "abc" }))

	var id int
	ok := t.Run("create", func(t *testing.T) {
		user := f.User(t)
		assert.Equal(t, "userabc", user.Username)
		assert.Equal(t, "userabc@email.com", user.Email)
		assert.Equal(t, "User abc", user.Name)
		id = user.ID
	})
	require.True(t, ok)

	assert.False(t, gl.Has(testutil.Users, id))
	assert.Equal(t, 1, gl.Count(testutil.Users), "root must survive")
}

func TestProjectChildren(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t), WithIDs(sequentialIDs()))

	ok := t.Run("create", func(t *testing.T) {
		project := f.Project(t)

		issue := f.Issue(t, project)
		assert.Equal(t, 1, issue.IID)
		assert.Equal(t, project.ID, issue.ProjectID)
		assert.Equal(t, "Issue 0002", issue.Title)
		assert.Equal(t, "Issue 0002 description", issue.Description)

		label := f.Label(t, project)
		assert.Equal(t, "prjlabel0003", label.Name)
		assert.Equal(t, "prjlabel1 0003 description", label.Description)
		assert.Equal(t, LabelColor, label.Color)

		variable := f.Variable(t, project)
		assert.Equal(t, "var0004", variable.Key)
		assert.Equal(t, "Variable 0004", variable.Value)

		token := f.DeployToken(t, project)
		assert.Equal(t, "token-0005", token.Name)
		assert.Equal(t, DeployTokenUsername, token.Username)
		assert.Equal(t, []string{DeployTokenScope}, token.Scopes)
		require.NotNil(t, token.ExpiresAt)
		assert.True(t, token.ExpiresAt.After(time.Now()), "deploy token must not be born expired")

		assert.Equal(t, 1, gl.Count(testutil.Issues))
		assert.Equal(t, 1, gl.Count(testutil.Labels))
		assert.Equal(t, 1, gl.Count(testutil.Variables))
		assert.Equal(t, 1, gl.Count(testutil.DeployTokens))
	})
	require.True(t, ok)

	assert.Equal(t, 1, gl.Deletes(testutil.Issues))
	assert.Equal(t, 1, gl.Deletes(testutil.DeployTokens))
	assert.Zero(t, gl.Count(testutil.Issues))
	assert.Zero(t, gl.Count(testutil.Labels), "labels go with their project")
	assert.Zero(t, gl.Count(testutil.Variables), "variables go with their project")
	assert.Zero(t, gl.Count(testutil.DeployTokens))
}

func TestGroupChildren(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t), WithIDs(sequentialIDs()))

	ok := t.Run("create", func(t *testing.T) {
		group := f.Group(t)

		label := f.GroupLabel(t, group)
		assert.Equal(t, "grplabel0002", label.Name)
		assert.Equal(t, "grplabel1 0002 description", label.Description)

		token := f.GroupDeployToken(t, group)
		assert.Equal(t, "group-token-0003", token.Name)

		assert.Equal(t, 1, gl.Count(testutil.GroupLabels))
		assert.Equal(t, 1, gl.Count(testutil.GroupDeployTokens))
	})
	require.True(t, ok)

	assert.Equal(t, 1, gl.Deletes(testutil.GroupDeployTokens))
	assert.Zero(t, gl.Count(testutil.GroupLabels))
	assert.Zero(t, gl.Count(testutil.Groups))
}

func TestTeardown_ToleratesAbsence(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	f := New(gl.Client(t), WithLogger(logger))

	tb := runTB(func(tb TB) {
		project := f.Project(tb)
		f.Issue(tb, project)

		// the test removes the project itself; the issue goes with it
		gl.Delete(testutil.Projects, project.ID)
	})
	require.False(t, tb.failed)

	tb.runCleanups()

	assert.False(t, tb.failed, "teardown must not fail the test")
	assert.Empty(t, tb.errors)
	assert.Equal(t, 1, gl.Deletes(testutil.Projects))
	assert.Equal(t, 1, gl.Deletes(testutil.Issues))
	require.Len(t, tb.logs, 2)
	assert.Contains(t, tb.logs[0], "already deleted")
	assert.Contains(t, tb.logs[1], "already deleted")
	assert.Contains(t, buf.String(), "fixture already deleted")
}

func TestCreateFailureFailsTest(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t), WithIDs(func() string { return "same" }))

	tb := runTB(func(tb TB) {
		f.Group(tb)
		f.Group(tb)
		t.Error("second Group must not return")
	})

	assert.True(t, tb.failed)
	require.NotEmpty(t, tb.errors)
	assert.Contains(t, tb.errors[0], "create group")
	assert.Len(t, tb.cleanups, 1, "only the created group is torn down")

	tb.runCleanups()
	assert.Zero(t, gl.Count(testutil.Groups))
}

func TestUniqueNamesDoNotCollide(t *testing.T) {
	t.Parallel()

	gl := testutil.NewGitLab(t)
	f := New(gl.Client(t))

	tb := runTB(func(tb TB) {
		for range 20 {
			f.Group(tb)
			f.Project(tb)
			f.User(tb)
		}
	})
	require.False(t, tb.failed, "errors: %v", tb.errors)
	assert.Equal(t, 20, gl.Count(testutil.Groups))
	assert.Equal(t, 20, gl.Count(testutil.Projects))
	assert.Equal(t, 21, gl.Count(testutil.Users))

	tb.runCleanups()
	assert.Zero(t, gl.Count(testutil.Groups))
	assert.Zero(t, gl.Count(testutil.Projects))
	assert.Equal(t, 1, gl.Count(testutil.Users))
}
