package fixture

import (
	"fmt"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xanzy/go-gitlab"
)

const (
	// UserPassword is the password given to every fixture user.
	UserPassword = "gitlabtest-Passw0rd!"

	// LabelColor is the color of fixture labels.
	LabelColor = "#112233"

	// DeployTokenScope is the only scope fixture deploy tokens get.
	DeployTokenScope = "read_registry"

	// DeployTokenUsername is the username fixture deploy tokens authenticate as.
	DeployTokenUsername = "root"

	// DeployTokenLifetime is how far in the future fixture deploy tokens expire.
	DeployTokenLifetime = 365 * 24 * time.Hour
)

// Group creates a group named test-group-<id> with path group-<id>.
func (f *Factory) Group(tb TB) *gitlab.Group {
	tb.Helper()

	id := f.newID()
	group, _, err := f.client.Groups.CreateGroup(&gitlab.CreateGroupOptions{
		Name: gitlab.String("test-group-" + id),
		Path: gitlab.String("group-" + id),
	}, f.request())
	require.NoError(tb, err, "create group")

	f.teardown(tb, "group", group.FullPath, func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error) {
		return f.client.Groups.DeleteGroup(group.ID, opts...)
	})
	return group
}

// Project creates a project named test-project-<id> in the current user's namespace.
func (f *Factory) Project(tb TB) *gitlab.Project {
	tb.Helper()

	project, _, err := f.client.Projects.CreateProject(&gitlab.CreateProjectOptions{
		Name: gitlab.String("test-project-" + f.newID()),
	}, f.request())
	require.NoError(tb, err, "create project")

	f.teardown(tb, "project", project.PathWithNamespace, func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error) {
		return f.client.Projects.DeleteProject(project.ID, opts...)
	})
	return project
}

// User creates user<id> with email user<id>@email.com and [UserPassword].
func (f *Factory) User(tb TB) *gitlab.User {
	tb.Helper()

	id := f.newID()
	user, _, err := f.client.Users.CreateUser(&gitlab.CreateUserOptions{
		Email:            gitlab.String(fmt.Sprintf("user%s@email.com", id)),
		Username:         gitlab.String("user" + id),
		Name:             gitlab.String("User " + id),
		Password:         gitlab.String(UserPassword),
		SkipConfirmation: gitlab.Bool(true),
	}, f.request())
	require.NoError(tb, err, "create user")

	f.teardown(tb, "user", user.Username, func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error) {
		return f.client.Users.DeleteUser(user.ID, opts...)
	})
	return user
}

// Issue opens an issue titled "Issue <id>" in project.
func (f *Factory) Issue(tb TB, project *gitlab.Project) *gitlab.Issue {
	tb.Helper()

	id := f.newID()
	issue, _, err := f.client.Issues.CreateIssue(project.ID, &gitlab.CreateIssueOptions{
		Title:       gitlab.String("Issue " + id),
		Description: gitlab.String("Issue " + id + " description"),
	}, f.request())
	require.NoError(tb, err, "create issue")

	name := fmt.Sprintf("%s#%d", project.PathWithNamespace, issue.IID)
	f.teardown(tb, "issue", name, func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error) {
		return f.client.Issues.DeleteIssue(project.ID, issue.IID, opts...)
	})
	return issue
}

// Label creates the project label prjlabel<id>.
func (f *Factory) Label(tb TB, project *gitlab.Project) *gitlab.Label {
	tb.Helper()

	id := f.newID()
	label, _, err := f.client.Labels.CreateLabel(project.ID, &gitlab.CreateLabelOptions{
		Name:        gitlab.String("prjlabel" + id),
		Description: gitlab.String("prjlabel1 " + id + " description"),
		Color:       gitlab.String(LabelColor),
	}, f.request())
	require.NoError(tb, err, "create project label")
	return label
}

// GroupLabel creates the group label grplabel<id>.
func (f *Factory) GroupLabel(tb TB, group *gitlab.Group) *gitlab.GroupLabel {
	tb.Helper()

	id := f.newID()
	label, _, err := f.client.GroupLabels.CreateGroupLabel(group.ID, &gitlab.CreateGroupLabelOptions{
		Name:        gitlab.String("grplabel" + id),
		Description: gitlab.String("grplabel1 " + id + " description"),
		Color:       gitlab.String(LabelColor),
	}, f.request())
	require.NoError(tb, err, "create group label")
	return label
}

// Variable creates the project CI variable var<id>.
func (f *Factory) Variable(tb TB, project *gitlab.Project) *gitlab.ProjectVariable {
	tb.Helper()

	id := f.newID()
	variable, _, err := f.client.ProjectVariables.CreateVariable(project.ID, &gitlab.CreateProjectVariableOptions{
		Key:   gitlab.String("var" + id),
		Value: gitlab.String("Variable " + id),
	}, f.request())
	require.NoError(tb, err, "create project variable")
	return variable
}

// DeployToken creates the project deploy token token-<id>.
func (f *Factory) DeployToken(tb TB, project *gitlab.Project) *gitlab.DeployToken {
	tb.Helper()

	name := "token-" + f.newID()
	token, _, err := f.client.DeployTokens.CreateProjectDeployToken(project.ID, &gitlab.CreateProjectDeployTokenOptions{
		Name:      gitlab.String(name),
		Username:  gitlab.String(DeployTokenUsername),
		ExpiresAt: deployTokenExpiry(),
		Scopes:    &[]string{DeployTokenScope},
	}, f.request())
	require.NoError(tb, err, "create project deploy token")

	f.teardown(tb, "deploy token", name, func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error) {
		return f.client.DeployTokens.DeleteProjectDeployToken(project.ID, token.ID, opts...)
	})
	return token
}

// GroupDeployToken creates the group deploy token group-token-<id>.
func (f *Factory) GroupDeployToken(tb TB, group *gitlab.Group) *gitlab.DeployToken {
	tb.Helper()

	name := "group-token-" + f.newID()
	token, _, err := f.client.DeployTokens.CreateGroupDeployToken(group.ID, &gitlab.CreateGroupDeployTokenOptions{
		Name:      gitlab.String(name),
		Username:  gitlab.String(DeployTokenUsername),
		ExpiresAt: deployTokenExpiry(),
		Scopes:    &[]string{DeployTokenScope},
	}, f.request())
	require.NoError(tb, err, "create group deploy token")

	f.teardown(tb, "group deploy token", name, func(opts ...gitlab.RequestOptionFunc) (*gitlab.Response, error) {
		return f.client.DeployTokens.DeleteGroupDeployToken(group.ID, token.ID, opts...)
	})
	return token
}

func deployTokenExpiry() *time.Time {
	t := time.Now().Add(DeployTokenLifetime).UTC().Truncate(time.Second)
	return &t
}
