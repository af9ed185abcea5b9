package repository

// Narrow interfaces around the GitHub and GitLab SDKs so GitHubClient and
// GitLabClient can be constructed against a fake in tests without a network
// round trip.

import (
	"context"

	"github.com/google/go-github/v57/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitHubRepositoriesService abstracts the subset of repository operations used.
type GitHubRepositoriesService interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
	ListByOrg(ctx context.Context, org string, opts *github.RepositoryListByOrgOptions) ([]*github.Repository, *github.Response, error)
}

// GitHubGitService abstracts git tree traversal used for recursive file listing.
type GitHubGitService interface {
	GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error)
}

type githubRepositoriesWrapper struct {
	client *github.Client
}

func (w *githubRepositoriesWrapper) Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error) {
	return w.client.Repositories.Get(ctx, owner, repo)
}

func (w *githubRepositoriesWrapper) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	return w.client.Repositories.GetContents(ctx, owner, repo, path, opts)
}

func (w *githubRepositoriesWrapper) ListByOrg(ctx context.Context, org string, opts *github.RepositoryListByOrgOptions) ([]*github.Repository, *github.Response, error) {
	return w.client.Repositories.ListByOrg(ctx, org, opts)
}

type githubGitWrapper struct {
	client *github.Client
}

func (w *githubGitWrapper) GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error) {
	return w.client.Git.GetTree(ctx, owner, repo, sha, recursive)
}

// GitHubAPI groups the narrowed GitHub service interfaces used by GitHubClient.
type GitHubAPI struct {
	Repositories GitHubRepositoriesService
	Git          GitHubGitService
}

func wrapGitHubClient(c *github.Client) GitHubAPI {
	return GitHubAPI{
		Repositories: &githubRepositoriesWrapper{client: c},
		Git:          &githubGitWrapper{client: c},
	}
}

// GitLabProjectsService abstracts project metadata retrieval.
type GitLabProjectsService interface {
	GetProject(projectID string, opts *gitlab.GetProjectOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Project, *gitlab.Response, error)
}

// GitLabGroupsService abstracts group project enumeration.
type GitLabGroupsService interface {
	ListGroupProjects(gid string, opt *gitlab.ListGroupProjectsOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error)
}

// GitLabRepositoriesService abstracts tree listing operations.
type GitLabRepositoriesService interface {
	ListTree(projectID string, opts *gitlab.ListTreeOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.TreeNode, *gitlab.Response, error)
}

// GitLabRepositoryFilesService abstracts file content retrieval.
type GitLabRepositoryFilesService interface {
	GetFile(projectID string, filePath string, opts *gitlab.GetFileOptions, options ...gitlab.RequestOptionFunc) (*gitlab.File, *gitlab.Response, error)
}

type gitlabProjectsWrapper struct {
	client *gitlab.Client
}

func (w *gitlabProjectsWrapper) GetProject(projectID string, opts *gitlab.GetProjectOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Project, *gitlab.Response, error) {
	return w.client.Projects.GetProject(projectID, opts, options...)
}

type gitlabRepositoriesWrapper struct {
	client *gitlab.Client
}

func (w *gitlabRepositoriesWrapper) ListTree(projectID string, opts *gitlab.ListTreeOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.TreeNode, *gitlab.Response, error) {
	return w.client.Repositories.ListTree(projectID, opts, options...)
}

type gitlabRepositoryFilesWrapper struct {
	client *gitlab.Client
}

func (w *gitlabRepositoryFilesWrapper) GetFile(projectID string, filePath string, opts *gitlab.GetFileOptions, options ...gitlab.RequestOptionFunc) (*gitlab.File, *gitlab.Response, error) {
	return w.client.RepositoryFiles.GetFile(projectID, filePath, opts, options...)
}

type gitlabGroupsWrapper struct {
	client *gitlab.Client
}

func (w *gitlabGroupsWrapper) ListGroupProjects(gid string, opt *gitlab.ListGroupProjectsOptions, options ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error) {
	return w.client.Groups.ListGroupProjects(gid, opt, options...)
}

// GitLabAPI groups the narrowed GitLab service interfaces used by GitLabClient.
type GitLabAPI struct {
	Projects        GitLabProjectsService
	Groups          GitLabGroupsService
	Repositories    GitLabRepositoriesService
	RepositoryFiles GitLabRepositoryFilesService
}

func wrapGitLabClient(c *gitlab.Client) GitLabAPI {
	return GitLabAPI{
		Projects:        &gitlabProjectsWrapper{client: c},
		Groups:          &gitlabGroupsWrapper{client: c},
		Repositories:    &gitlabRepositoriesWrapper{client: c},
		RepositoryFiles: &gitlabRepositoryFilesWrapper{client: c},
	}
}
