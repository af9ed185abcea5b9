package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabClient implements the Client interface for GitLab repositories
type GitLabClient struct {
	api    GitLabAPI
	config Config
}

// NewGitLabClient creates a new GitLab client with the provided configuration
// If no token is provided, the client will only have access to public repositories
// If a custom BaseURL is provided, it will be used for self-hosted GitLab instances
func NewGitLabClient(config Config) (*GitLabClient, error) {
	opts := []gitlab.ClientOptionFunc{}
	if config.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(config.BaseURL))
	}

	client, err := gitlab.NewClient(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return NewGitLabClientWithAPI(config, wrapGitLabClient(client)), nil
}

// NewGitLabClientWithAPI constructs a GitLabClient against an already-narrowed
// GitLabAPI, bypassing the real SDK. NewGitLabClient calls it with the wrapped
// SDK client; a caller can pass fakes for Projects/Repositories/RepositoryFiles
// instead to avoid a network round trip.
func NewGitLabClientWithAPI(config Config, api GitLabAPI) *GitLabClient {
	return &GitLabClient{api: api, config: config}
}

// ListFiles retrieves files and directories at a specific path in the repository
// This returns the contents of a single directory level
func (g *GitLabClient) ListFiles(ctx context.Context, owner, repo, ref, path string) ([]FileInfo, error) {
	projectID := fmt.Sprintf("%s/%s", owner, repo)

	opts := &gitlab.ListTreeOptions{
		Path: gitlab.Ptr(path),
		Ref:  gitlab.Ptr(ref),
		ListOptions: gitlab.ListOptions{
			PerPage: 100,
		},
	}
	if ref == "" {
		opts.Ref = nil
	}

	trees, resp, err := g.api.Repositories.ListTree(projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list files from GitLab: %w", err)
	}
	defer closeGitLabResponse(resp)

	files := make([]FileInfo, 0, len(trees))
	for _, node := range trees {
		fileType := node.Type
		if fileType == "blob" {
			fileType = "file"
		} else if fileType == "tree" {
			fileType = "dir"
		}

		fileInfo := FileInfo{
			Path: node.Path,
			Name: node.Name,
			Type: fileType,
			Mode: node.Mode,
			SHA:  node.ID,
		}

		if ref != "" {
			fileInfo.URL = fmt.Sprintf("%s/-/blob/%s/%s", g.getProjectURL(owner, repo), ref, node.Path)
		}

		files = append(files, fileInfo)
	}

	return files, nil
}

// GetRepositoryInfo retrieves metadata about a GitLab repository
func (g *GitLabClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*RepositoryInfo, error) {
	projectID := fmt.Sprintf("%s/%s", owner, repo)

	project, resp, err := g.api.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get repository info from GitLab: %w", err)
	}
	defer closeGitLabResponse(resp)

	repoInfo := &RepositoryInfo{
		ID:            fmt.Sprintf("%d", project.ID),
		Name:          project.Name,
		FullName:      project.PathWithNamespace,
		Description:   project.Description,
		DefaultBranch: project.DefaultBranch,
		URL:           project.WebURL,
	}

	return repoInfo, nil
}

// ListFilesRecursive retrieves all files recursively in a repository
// This traverses the entire repository tree and returns only files (not directories)
func (g *GitLabClient) ListFilesRecursive(ctx context.Context, owner, repo, ref string) ([]FileInfo, error) {
	projectID := fmt.Sprintf("%s/%s", owner, repo)

	refToUse := ref
	if refToUse == "" {
		repoInfo, err := g.GetRepositoryInfo(ctx, owner, repo)
		if err != nil {
			return nil, fmt.Errorf("failed to get default branch: %w", err)
		}
		refToUse = repoInfo.DefaultBranch
	}

	opts := &gitlab.ListTreeOptions{
		Recursive: gitlab.Ptr(true),
		Ref:       gitlab.Ptr(refToUse),
		ListOptions: gitlab.ListOptions{
			PerPage: 100,
		},
	}

	allFiles := make([]FileInfo, 0)
	page := 1

	for {
		opts.Page = page

		trees, resp, err := g.api.Repositories.ListTree(projectID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to get repository tree from GitLab: %w", err)
		}

		for _, node := range trees {
			if node.Type == "blob" {
				fileInfo := FileInfo{
					Path: node.Path,
					Name: filepath.Base(node.Path),
					Type: "file",
					Mode: node.Mode,
					SHA:  node.ID,
					URL:  fmt.Sprintf("%s/-/blob/%s/%s", g.getProjectURL(owner, repo), refToUse, node.Path),
				}
				allFiles = append(allFiles, fileInfo)
			}
		}

		nextPage := resp.NextPage
		closeGitLabResponse(resp)
		if nextPage == 0 {
			break
		}
		page = nextPage
	}

	return allFiles, nil
}

// getProjectURL constructs the base web URL for a GitLab project
// This handles both gitlab.com and self-hosted instances
func (g *GitLabClient) getProjectURL(owner, repo string) string {
	baseURL := g.config.BaseURL
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	return fmt.Sprintf("%s/%s/%s", baseURL, owner, repo)
}

// GetFileContent retrieves the content of a specific file from a GitLab repository
func (g *GitLabClient) GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	projectID := fmt.Sprintf("%s/%s", owner, repo)

	refToUse := ref
	if refToUse == "" {
		repoInfo, err := g.GetRepositoryInfo(ctx, owner, repo)
		if err != nil {
			return "", fmt.Errorf("failed to get default branch: %w", err)
		}
		refToUse = repoInfo.DefaultBranch
	}

	opts := &gitlab.GetFileOptions{
		Ref: gitlab.Ptr(refToUse),
	}

	file, resp, err := g.api.RepositoryFiles.GetFile(projectID, path, opts, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to get file content from GitLab: %w", err)
	}
	defer closeGitLabResponse(resp)

	if file.Content == "" {
		return "", fmt.Errorf("file content is empty: %s", path)
	}

	decodedContent, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 content: %w", err)
	}

	return string(decodedContent), nil
}

func closeGitLabResponse(resp *gitlab.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close GitLab response body", "error", err)
	}
}
