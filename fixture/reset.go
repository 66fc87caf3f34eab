package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xanzy/go-gitlab"
	"golang.org/x/sync/errgroup"
)

const (
	// AdminUsername is the account Reset never deletes.
	AdminUsername = "root"

	resetPageSize    = 100
	resetConcurrency = 4
)

// Reset deletes every project, every group and every user except
// [AdminUsername], in that order.
//
// All ids of a kind are collected before any of them is deleted, so deletion
// does not shift the pages being read. Records that disappear in between are
// skipped. All other failures are collected and returned together.
func Reset(ctx context.Context, client *gitlab.Client, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	steps := []struct {
		kind   string
		list   func(context.Context, *gitlab.Client) ([]int, error)
		delete func(context.Context, *gitlab.Client, int) (*gitlab.Response, error)
	}{
		{kind: "project", list: listProjects, delete: deleteProject},
		{kind: "group", list: listGroups, delete: deleteGroup},
		{kind: "user", list: listUsers, delete: deleteUser},
	}

	var errs []error
	for _, step := range steps {
		ids, err := step.list(ctx, client)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %ss: %w", step.kind, err))
			continue
		}

		logger.Info("resetting gitlab", slog.String("kind", step.kind), slog.Int("count", len(ids)))
		errs = append(errs, deleteAll(ctx, client, logger, step.kind, ids, step.delete))
	}
	return errors.Join(errs...)
}

func deleteAll(
	ctx context.Context,
	client *gitlab.Client,
	logger *slog.Logger,
	kind string,
	ids []int,
	del func(context.Context, *gitlab.Client, int) (*gitlab.Response, error),
) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(resetConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			resp, err := del(ctx, client, id)
			switch {
			case err == nil:
				logger.Debug("deleted", slog.String("kind", kind), slog.Int("id", id))
			case isNotFound(resp, err):
				logger.Debug("already deleted", slog.String("kind", kind), slog.Int("id", id))
			default:
				mu.Lock()
				errs = append(errs, fmt.Errorf("delete %s %d: %w", kind, id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func listProjects(ctx context.Context, client *gitlab.Client) ([]int, error) {
	opt := &gitlab.ListProjectsOptions{ListOptions: gitlab.ListOptions{PerPage: resetPageSize, Page: 1}}
	var ids []int
	for {
		projects, resp, err := client.Projects.ListProjects(opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		if resp.NextPage == 0 {
			return ids, nil
		}
		opt.Page = resp.NextPage
	}
}

func listGroups(ctx context.Context, client *gitlab.Client) ([]int, error) {
	opt := &gitlab.ListGroupsOptions{ListOptions: gitlab.ListOptions{PerPage: resetPageSize, Page: 1}}
	var ids []int
	for {
		groups, resp, err := client.Groups.ListGroups(opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			ids = append(ids, g.ID)
		}
		if resp.NextPage == 0 {
			return ids, nil
		}
		opt.Page = resp.NextPage
	}
}

func listUsers(ctx context.Context, client *gitlab.Client) ([]int, error) {
	opt := &gitlab.ListUsersOptions{ListOptions: gitlab.ListOptions{PerPage: resetPageSize, Page: 1}}
	var ids []int
	for {
		users, resp, err := client.Users.ListUsers(opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Username != AdminUsername {
				ids = append(ids, u.ID)
			}
		}
		if resp.NextPage == 0 {
			return ids, nil
		}
		opt.Page = resp.NextPage
	}
}

func deleteProject(ctx context.Context, client *gitlab.Client, id int) (*gitlab.Response, error) {
	return client.Projects.DeleteProject(id, gitlab.WithContext(ctx))
}

func deleteGroup(ctx context.Context, client *gitlab.Client, id int) (*gitlab.Response, error) {
	return client.Groups.DeleteGroup(id, gitlab.WithContext(ctx))
}

func deleteUser(ctx context.Context, client *gitlab.Client, id int) (*gitlab.Response, error) {
	return client.Users.DeleteUser(id, gitlab.WithContext(ctx))
}
