package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHubSource loads markdown documents from a directory inside a GitHub
// repository. If GITHUB_TOKEN is set the client is authenticated, which
// raises the API rate limit from 60 to 5000 requests per hour; rate limit
// responses are handled by waiting and retrying either way.
type GitHubSource struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
}

// NewGitHubSource creates a source over owner/repo rooted at basePath.
func NewGitHubSource(owner, repo, basePath string) (*GitHubSource, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("github rate limiter: %w", err)
	}

	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHubSource{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}, nil
}

// List recursively walks the repository directory collecting markdown files,
// sorted. Paths are relative to basePath.
func (s *GitHubSource) List(ctx context.Context) ([]string, error) {
	paths, err := s.listRecursive(ctx, s.basePath, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *GitHubSource) listRecursive(ctx context.Context, fullPath, relPath string) ([]string, error) {
	_, entries, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", fullPath, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type == nil || entry.Name == nil {
			continue
		}
		entryRel := path.Join(relPath, *entry.Name)

		switch *entry.Type {
		case "file":
			if strings.HasSuffix(*entry.Name, ".md") {
				paths = append(paths, entryRel)
			}
		case "dir":
			sub, err := s.listRecursive(ctx, path.Join(fullPath, *entry.Name), entryRel)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// Fetch downloads and decodes one markdown file, split into section pages.
func (s *GitHubSource) Fetch(ctx context.Context, relPath string) (*Document, error) {
	fullPath := path.Join(s.basePath, relPath)

	file, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fullPath, err)
	}
	if file == nil || file.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	data, err := base64.StdEncoding.DecodeString(*file.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fullPath, err)
	}

	pages, err := PagesFromMarkdown(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fullPath, err)
	}

	return &Document{Path: relPath, Pages: pages}, nil
}

// LatestCommitSHA returns the SHA of the most recent commit touching the
// source directory, usable as a cheap freshness probe before a full sync.
func (s *GitHubSource) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := s.client.Repositories.ListCommits(ctx, s.owner, s.repo, &github.CommitsListOptions{
		Path:        s.basePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %s", s.basePath)
	}
	return *commits[0].SHA, nil
}
