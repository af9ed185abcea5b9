package repository

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ProjectRef identifies a single repository discovered while enumerating a
// GitHub organization or GitLab group, in a provider-neutral shape the scan
// controller's group-scan path can queue directly.
type ProjectRef struct {
	Owner         string
	Repo          string
	DefaultBranch string
	WebURL        string
}

// GroupEnumerator lists the projects that belong to an organization (GitHub)
// or group (GitLab), paginating until the provider reports no further pages.
type GroupEnumerator interface {
	ListGroupProjects(ctx context.Context, group string) ([]ProjectRef, error)
}

// ListGroupProjects lists every repository owned by a GitHub organization.
func (g *GitHubClient) ListGroupProjects(ctx context.Context, group string) ([]ProjectRef, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var refs []ProjectRef
	for {
		repos, resp, err := g.api.Repositories.ListByOrg(ctx, group, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories for organization %s: %w", group, err)
		}
		for _, repo := range repos {
			refs = append(refs, ProjectRef{
				Owner:         group,
				Repo:          repo.GetName(),
				DefaultBranch: repo.GetDefaultBranch(),
				WebURL:        repo.GetHTMLURL(),
			})
		}
		nextPage := resp.NextPage
		closeGitHubResponse(resp)
		if nextPage == 0 {
			break
		}
		opts.Page = nextPage
	}

	return refs, nil
}

// ListGroupProjects lists every project that belongs to a GitLab group,
// including those in its subgroups.
func (g *GitLabClient) ListGroupProjects(ctx context.Context, group string) ([]ProjectRef, error) {
	opts := &gitlab.ListGroupProjectsOptions{
		ListOptions:      gitlab.ListOptions{PerPage: 100},
		IncludeSubGroups: gitlab.Ptr(true),
	}

	var refs []ProjectRef
	page := 1
	for {
		opts.Page = page
		projects, resp, err := g.api.Groups.ListGroupProjects(group, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list projects for group %s: %w", group, err)
		}
		for _, project := range projects {
			owner, repo := splitPathWithNamespace(project.PathWithNamespace, project.Path)
			refs = append(refs, ProjectRef{
				Owner:         owner,
				Repo:          repo,
				DefaultBranch: project.DefaultBranch,
				WebURL:        project.WebURL,
			})
		}
		nextPage := resp.NextPage
		closeGitLabResponse(resp)
		if nextPage == 0 {
			break
		}
		page = nextPage
	}

	return refs, nil
}

// splitPathWithNamespace turns GitLab's "group/subgroup/project" path into the
// owner/repo pair the rest of the package works with: everything before the
// final segment is the owner, the final segment is the repo.
func splitPathWithNamespace(pathWithNamespace, projectPath string) (owner, repo string) {
	repo = projectPath
	owner = pathWithNamespace
	if len(pathWithNamespace) > len(repo)+1 {
		owner = pathWithNamespace[:len(pathWithNamespace)-len(repo)-1]
	}
	return owner, repo
}
