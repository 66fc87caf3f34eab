//go:build integration

package integration

import (
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xanzy/go-gitlab"

	"github.com/meigma/gitlabtest/fixture"
)

var _ = Describe("Fixtures", func() {
	var f *fixture.Factory

	BeforeEach(func() {
		f = harness.Fixtures()
	})

	It("creates a group", func(ctx SpecContext) {
		group := f.Group(GinkgoT())
		Expect(group.Name).To(HavePrefix("test-group-"))
		Expect(group.Path).To(HavePrefix("group-"))

		got, _, err := harness.Client().Groups.GetGroup(group.ID, nil, gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())
		Expect(got.FullPath).To(Equal(group.FullPath))
	})

	It("creates a project", func(ctx SpecContext) {
		project := f.Project(GinkgoT())
		Expect(project.Name).To(HavePrefix("test-project-"))

		got, _, err := harness.Client().Projects.GetProject(project.ID, nil, gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PathWithNamespace).To(Equal(project.PathWithNamespace))
	})

	It("creates a user", func(ctx SpecContext) {
		user := f.User(GinkgoT())
		Expect(user.Username).To(HavePrefix("user"))
		Expect(user.Email).To(HaveSuffix("@email.com"))

		users, _, err := harness.Client().Users.ListUsers(&gitlab.ListUsersOptions{
			Username: gitlab.String(user.Username),
		}, gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(1))
		Expect(users[0].ID).To(Equal(user.ID))
	})

	It("creates project children", func() {
		project := f.Project(GinkgoT())

		issue := f.Issue(GinkgoT(), project)
		Expect(issue.Title).To(HavePrefix("Issue "))
		Expect(issue.ProjectID).To(Equal(project.ID))

		label := f.Label(GinkgoT(), project)
		Expect(label.Name).To(HavePrefix("prjlabel"))
		Expect(strings.ToLower(label.Color)).To(Equal(fixture.LabelColor))

		variable := f.Variable(GinkgoT(), project)
		Expect(variable.Key).To(HavePrefix("var"))
		Expect(variable.Value).To(HavePrefix("Variable "))

		token := f.DeployToken(GinkgoT(), project)
		Expect(token.Name).To(HavePrefix("token-"))
		Expect(token.Token).NotTo(BeEmpty())
		Expect(token.Scopes).To(ConsistOf(fixture.DeployTokenScope))
	})

	It("creates group children", func() {
		group := f.Group(GinkgoT())

		label := f.GroupLabel(GinkgoT(), group)
		Expect(label.Name).To(HavePrefix("grplabel"))

		token := f.GroupDeployToken(GinkgoT(), group)
		Expect(token.Name).To(HavePrefix("group-token-"))
		Expect(token.Token).NotTo(BeEmpty())
	})

	It("gives every fixture a distinct name", func() {
		a := f.Project(GinkgoT())
		b := f.Project(GinkgoT())
		Expect(a.Name).NotTo(Equal(b.Name))
	})

	Context("once its test has finished", Ordered, func() {
		var projectID int

		It("creates a project", func() {
			projectID = f.Project(GinkgoT()).ID
		})

		It("has deleted it", func(ctx SpecContext) {
			Eventually(func() int {
				_, resp, _ := harness.Client().Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
				if resp == nil {
					return 0
				}
				return resp.StatusCode
			}).WithContext(ctx).WithTimeout(time.Minute).WithPolling(2 * time.Second).Should(Equal(http.StatusNotFound))
		})
	})

	It("tolerates a fixture deleted by the test", func(ctx SpecContext) {
		project := f.Project(GinkgoT())
		_, err := harness.Client().Projects.DeleteProject(project.ID, gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())
	})
})
