//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xanzy/go-gitlab"

	"github.com/meigma/gitlabtest/config"
	"github.com/meigma/gitlabtest/container"
	"github.com/meigma/gitlabtest/fixture"
)

var _ = Describe("Harness", func() {
	It("reached the reconfigured state", func(ctx SpecContext) {
		logs, err := harness.Container().Logs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(logs).To(ContainSubstring(container.Sentinel))
	})

	It("writes a config file that points at the container", func() {
		info, err := os.Stat(harness.ConfigPath())
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

		cfg, err := config.Load(harness.ConfigPath(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.URL).To(Equal(harness.Container().Endpoint()))
		Expect(cfg.APIVersion).To(Equal(config.DefaultAPIVersion))
	})

	It("authenticates as root", func(ctx SpecContext) {
		user, _, err := harness.Client().Users.CurrentUser(gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())
		Expect(user.Username).To(Equal(fixture.AdminUsername))
		Expect(user.IsAdmin).To(BeTrue())
	})

	It("seeds the token idempotently", func(ctx SpecContext) {
		_, err := harness.Container().SeedToken(ctx, harness.Config().PrivateToken)
		Expect(err).NotTo(HaveOccurred())

		_, _, err = harness.Client().Version.GetVersion(gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())
	})

	It("resets projects, groups and users", func(ctx SpecContext) {
		client := harness.Client()

		_, _, err := client.Projects.CreateProject(&gitlab.CreateProjectOptions{
			Name: gitlab.String("reset-me"),
		}, gitlab.WithContext(ctx))
		Expect(err).NotTo(HaveOccurred())

		Expect(harness.Reset(context.WithoutCancel(ctx))).To(Succeed())

		Eventually(func(g Gomega) {
			projects, _, err := client.Projects.ListProjects(&gitlab.ListProjectsOptions{}, gitlab.WithContext(ctx))
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(projects).To(BeEmpty())

			users, _, err := client.Users.ListUsers(&gitlab.ListUsersOptions{}, gitlab.WithContext(ctx))
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(users).To(HaveLen(1))
			g.Expect(users[0].Username).To(Equal(fixture.AdminUsername))
		}).WithContext(ctx).WithTimeout(time.Minute).WithPolling(2 * time.Second).Should(Succeed())
	})
})
